package ilrun

// Builtins returns the small set of libc-equivalent functions the bundled
// headers declare and the interpreter can satisfy without an external ABI:
// enough to exercise the scenario programs' calls into stdio.h/string.h
// style declarations without shelling out to a real libc.
func Builtins() map[string]func(m *Machine, args []int64) int64 {
	return map[string]func(m *Machine, args []int64) int64{
		"isalpha": func(m *Machine, args []int64) int64 {
			c := byte(args[0])
			if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
				return 1
			}
			return 0
		},
		"isdigit": func(m *Machine, args []int64) int64 {
			c := byte(args[0])
			if c >= '0' && c <= '9' {
				return 1
			}
			return 0
		},
		"strlen": func(m *Machine, args []int64) int64 {
			return int64(len(m.ReadCString(args[0])))
		},
		"strcmp": func(m *Machine, args []int64) int64 {
			a, b := m.ReadCString(args[0]), m.ReadCString(args[1])
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		},
		"strncpy": func(m *Machine, args []int64) int64 {
			dst, src, n := args[0], m.ReadCString(args[1]), int(args[2])
			for i := 0; i < n; i++ {
				if i < len(src) {
					m.mem[dst+int64(i)] = src[i]
				} else {
					m.mem[dst+int64(i)] = 0
				}
			}
			return dst
		},
		"div": func(m *Machine, args []int64) int64 {
			num, den := args[0], args[1]
			return num / den
		},
		"putchar": func(m *Machine, args []int64) int64 {
			m.Stdout = append(m.Stdout, byte(args[0]))
			return args[0]
		},
	}
}
