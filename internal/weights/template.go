package weights

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

const valuesPerLine = 8

// name[...] = {
var declRe = regexp.MustCompile(`([A-Za-z_]\w*)\s*((?:\[[^\]]*\]\s*)+)=\s*\{`)

var commentRe = regexp.MustCompile(`(?s)//[^\n]*|/\*.*?\*/`)

var errNoArrays = errors.New("no numeric array declarations found")

type part struct {
	text    string
	isArray bool
	name    string
	first   int
	count   int
}

// Template is a weight-table source with every numeric array element turned into a slot.
// Text outside the arrays is kept verbatim; array bodies are laid out eight values per line.
type Template struct {
	parts    []part
	baseline []int
}

func Parse(source string) (*Template, error) {
	var t = &Template{}
	var pos = 0
	// comments are blanked out so offsets in masked and source agree
	var masked = blankComments(source)
	for _, loc := range declRe.FindAllStringSubmatchIndex(masked, -1) {
		if loc[0] < pos {
			continue
		}
		var name = source[loc[2]:loc[3]]
		var open = loc[1] - 1
		var closing = strings.IndexByte(masked[open+1:], '}')
		if closing < 0 {
			return nil, errors.Errorf("array %v: missing closing brace", name)
		}
		closing += open + 1
		var body = masked[open+1 : closing]
		if strings.ContainsRune(body, '{') {
			continue
		}
		var values, ok = parseElements(body)
		if !ok {
			continue
		}
		t.parts = append(t.parts,
			part{text: source[pos : open+1]},
			part{isArray: true, name: name, first: len(t.baseline), count: len(values)})
		t.baseline = append(t.baseline, values...)
		pos = closing
	}
	t.parts = append(t.parts, part{text: source[pos:]})
	if len(t.baseline) == 0 {
		return nil, errNoArrays
	}
	return t, nil
}

func blankComments(source string) string {
	return commentRe.ReplaceAllStringFunc(source, func(comment string) string {
		var b = []byte(comment)
		for i := range b {
			if b[i] != '\n' {
				b[i] = ' '
			}
		}
		return string(b)
	})
}

func parseElements(body string) ([]int, bool) {
	var items = strings.Split(body, ",")
	if strings.TrimSpace(items[len(items)-1]) == "" {
		items = items[:len(items)-1]
	}
	if len(items) == 0 {
		return nil, false
	}
	var values = make([]int, 0, len(items))
	for _, item := range items {
		var v, err = Evaluate(item)
		if err != nil {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

// Evaluate computes an integer literal or a sum of literals such as "120 + -5".
func Evaluate(expr string) (int, error) {
	var sum = 0
	for _, term := range strings.Split(expr, "+") {
		var v, err = strconv.Atoi(strings.TrimSpace(term))
		if err != nil {
			return 0, errors.Wrapf(err, "evaluate %q", expr)
		}
		sum += v
	}
	return sum, nil
}

func (t *Template) Len() int {
	return len(t.baseline)
}

func (t *Template) Baseline() []int {
	var result = make([]int, len(t.baseline))
	copy(result, t.baseline)
	return result
}

// Describe names parameter i as array[offset].
func (t *Template) Describe(i int) string {
	for _, p := range t.parts {
		if p.isArray && i >= p.first && i < p.first+p.count {
			return fmt.Sprintf("%v[%v]", p.name, i-p.first)
		}
	}
	return fmt.Sprintf("#%v", i)
}

// Text renders the template with a "%d" placeholder after every baseline value.
func (t *Template) Text() string {
	return t.render(func(i int) string {
		return strconv.Itoa(t.baseline[i]) + "+%d"
	})
}

// Fill renders the source with the offsets added to the baseline values.
func (t *Template) Fill(offsets domain.WeightVector) (string, error) {
	if len(offsets) != len(t.baseline) {
		return "", errors.Errorf("weight vector has %v entries, template has %v slots", len(offsets), len(t.baseline))
	}
	return t.render(func(i int) string {
		return fmt.Sprintf("%d+%d", t.baseline[i], offsets[i])
	}), nil
}

func (t *Template) render(slot func(i int) string) string {
	var sb = &strings.Builder{}
	for _, p := range t.parts {
		if !p.isArray {
			sb.WriteString(p.text)
			continue
		}
		sb.WriteString("\n")
		for j := 0; j < p.count; j++ {
			if j%valuesPerLine == 0 {
				sb.WriteString("\t")
			}
			sb.WriteString(slot(p.first + j))
			switch {
			case j == p.count-1:
				sb.WriteString("\n")
			case j%valuesPerLine == valuesPerLine-1:
				sb.WriteString(",\n")
			default:
				sb.WriteString(", ")
			}
		}
	}
	return sb.String()
}
