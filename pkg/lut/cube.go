package lut

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
)

const MaxSize = 256

// A MalformedLutError describes why a .cube file could not be used.
type MalformedLutError struct {
	Line   int // 0 if the problem isn't tied to a line
	Reason string
}

func (e *MalformedLutError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed .cube LUT, line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed .cube LUT: %s", e.Reason)
}

func ParseCubeString(s string) (*Table, error) {
	return ParseCube(strings.NewReader(s))
}

// ParseCube reads the Adobe/Resolve .cube text format. Comments, blank
// lines, and keywords we don't know about (LUT_1D_SIZE, LUT_3D_INPUT_RANGE,
// ...) are skipped.
func ParseCube(r io.Reader) (*Table, error) {
	t := &Table{
		DomainMin: emath.Vec3{0, 0, 0},
		DomainMax: emath.Vec3{1, 1, 1},
	}
	rows := []float32{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		key := strings.ToUpper(fields[0])

		switch {
		case key == "TITLE":
			t.Title = strings.Trim(strings.TrimSpace(line[len(fields[0]):]), `"`)

		case key == "LUT_3D_SIZE":
			if len(fields) != 2 {
				return nil, &MalformedLutError{lineNo, "LUT_3D_SIZE needs one value"}
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 2 || n > MaxSize {
				return nil, &MalformedLutError{lineNo, fmt.Sprintf("bad LUT_3D_SIZE '%s'", fields[1])}
			}
			t.Size = n

		case key == "DOMAIN_MIN", key == "DOMAIN_MAX":
			v, err := parseTriplet(fields[1:])
			if err != nil {
				return nil, &MalformedLutError{lineNo, fmt.Sprintf("%s: %v", key, err)}
			}
			if key == "DOMAIN_MIN" {
				t.DomainMin = v
			} else {
				t.DomainMax = v
			}

		case isNumeric(fields[0]):
			v, err := parseTriplet(fields)
			if err != nil {
				return nil, &MalformedLutError{lineNo, fmt.Sprintf("data row: %v", err)}
			}
			rows = append(rows, float32(v[0]), float32(v[1]), float32(v[2]))

		default:
			// Some other keyword
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading .cube: %w", err)
	}

	if t.Size == 0 {
		return nil, &MalformedLutError{0, "no LUT_3D_SIZE"}
	}
	if want := t.Size * t.Size * t.Size; len(rows)/3 != want {
		return nil, &MalformedLutError{0, fmt.Sprintf("LUT_3D_SIZE %d needs %d rows, found %d", t.Size, want, len(rows)/3)}
	}
	for i := 0; i < 3; i++ {
		if t.DomainMax[i] <= t.DomainMin[i] {
			return nil, &MalformedLutError{0, fmt.Sprintf("empty domain %v-%v", t.DomainMin, t.DomainMax)}
		}
	}

	t.Entries = rows
	return t, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func parseTriplet(fields []string) (emath.Vec3, error) {
	if len(fields) != 3 {
		return emath.Vec3{}, fmt.Errorf("want 3 values, got %d", len(fields))
	}
	v := emath.Vec3{}
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return emath.Vec3{}, fmt.Errorf("'%s' is not a number", f)
		}
		v[i] = x
	}
	return v, nil
}

// WriteCube emits the table in .cube format.
func WriteCube(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)

	if t.Title != "" {
		fmt.Fprintf(bw, "TITLE \"%s\"\n", t.Title)
	}
	fmt.Fprintf(bw, "LUT_3D_SIZE %d\n", t.Size)
	if t.DomainMin != (emath.Vec3{0, 0, 0}) || t.DomainMax != (emath.Vec3{1, 1, 1}) {
		fmt.Fprintf(bw, "DOMAIN_MIN %g %g %g\n", t.DomainMin[0], t.DomainMin[1], t.DomainMin[2])
		fmt.Fprintf(bw, "DOMAIN_MAX %g %g %g\n", t.DomainMax[0], t.DomainMax[1], t.DomainMax[2])
	}
	fmt.Fprintln(bw)

	for i := 0; i+2 < len(t.Entries); i += 3 {
		fmt.Fprintf(bw, "%.6f %.6f %.6f\n", t.Entries[i], t.Entries[i+1], t.Entries[i+2])
	}

	return bw.Flush()
}
