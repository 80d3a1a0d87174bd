package detector

import (
	"strconv"
	"strings"
)

// FloatList is a comma separated list of numbers on the command line and
// an array in configuration files.
type FloatList []float64

func (l FloatList) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value. It replaces the list.
func (l *FloatList) Set(s string) error {
	out := FloatList{}
	for _, part := range splitList(s) {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// IntList is the integer counterpart of FloatList.
type IntList []int

func (l IntList) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value. It replaces the list.
func (l *IntList) Set(s string) error {
	out := IntList{}
	for _, part := range splitList(s) {
		v, err := strconv.Atoi(part)
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// splitList accepts "1,2,3" as well as "[1, 2, 3]".
func splitList(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
