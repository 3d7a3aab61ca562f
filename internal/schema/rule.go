package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ruleKind enumerates the validator types a rule string can name.
type ruleKind int

const (
	kindStr ruleKind = iota
	kindInt
	kindNum
	kindBool
	kindEnum
	kindList
	kindMap
	kindAny
)

var kindNames = map[ruleKind]string{
	kindStr:  "str",
	kindInt:  "int",
	kindNum:  "num",
	kindBool: "bool",
	kindEnum: "enum",
	kindList: "list",
	kindMap:  "map",
	kindAny:  "any",
}

func (k ruleKind) String() string { return kindNames[k] }

// Rule is one compiled leaf validator. Rules are immutable after Compile.
type Rule struct {
	Kind     ruleKind
	Required bool
	Min      *float64 // length for str/list, value for int/num
	Max      *float64
	Enum     []string
	Elem     *Rule // element rule for list()
}

// parseRule compiles a single rule string such as "int(min=1, required=False)"
// or "list(str(), min=1)" into a Rule.
func parseRule(text string) (*Rule, error) {
	name, args, err := splitCall(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}

	rule := &Rule{Required: true}
	switch name {
	case "str":
		rule.Kind = kindStr
	case "int":
		rule.Kind = kindInt
	case "num":
		rule.Kind = kindNum
	case "bool":
		rule.Kind = kindBool
	case "enum":
		rule.Kind = kindEnum
	case "list":
		rule.Kind = kindList
	case "map":
		rule.Kind = kindMap
	case "any":
		rule.Kind = kindAny
	default:
		return nil, fmt.Errorf("unknown rule %q", name)
	}

	for _, arg := range args {
		if key, value, isKeyword := cutKeyword(arg); isKeyword {
			if err := applyKeyword(rule, key, value); err != nil {
				return nil, fmt.Errorf("rule %q: %w", text, err)
			}
			continue
		}

		switch rule.Kind {
		case kindEnum:
			literal, err := unquote(arg)
			if err != nil {
				return nil, fmt.Errorf("rule %q: enum values must be quoted strings: %w", text, err)
			}
			rule.Enum = append(rule.Enum, literal)
		case kindList:
			if rule.Elem != nil {
				return nil, fmt.Errorf("rule %q: list() accepts a single element rule", text)
			}
			elem, err := parseRule(arg)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", text, err)
			}
			rule.Elem = elem
		default:
			return nil, fmt.Errorf("rule %q: unexpected positional argument %q", text, arg)
		}
	}

	if rule.Kind == kindEnum && len(rule.Enum) == 0 {
		return nil, fmt.Errorf("rule %q: enum() requires at least one value", text)
	}
	if rule.Kind == kindList && rule.Elem == nil {
		rule.Elem = &Rule{Kind: kindAny, Required: true}
	}
	return rule, nil
}

// applyKeyword sets one key=value argument on the rule.
func applyKeyword(rule *Rule, key, value string) error {
	switch key {
	case "required":
		b, err := parseBoolLiteral(value)
		if err != nil {
			return fmt.Errorf("required: %w", err)
		}
		rule.Required = b
	case "min":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("min must be numeric, got %q", value)
		}
		rule.Min = &f
	case "max":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("max must be numeric, got %q", value)
		}
		rule.Max = &f
	default:
		return fmt.Errorf("unknown keyword argument %q", key)
	}
	return nil
}

// parseBoolLiteral accepts both YAML-style and Python-style booleans, since
// schema authors coming from Yamale write True/False.
func parseBoolLiteral(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean literal %q", s)
}

// splitCall breaks "name(arg, arg, ...)" into the call name and its raw
// top-level arguments, honoring nested parentheses and quoted strings.
func splitCall(text string) (string, []string, error) {
	open := strings.IndexByte(text, '(')
	if open < 0 || !strings.HasSuffix(text, ")") {
		return "", nil, fmt.Errorf("malformed rule %q: expected name(...)", text)
	}
	name := strings.TrimSpace(text[:open])
	body := text[open+1 : len(text)-1]

	var (
		args    []string
		current strings.Builder
		depth   int
		quote   byte
	)
	flush := func() {
		arg := strings.TrimSpace(current.String())
		if arg != "" {
			args = append(args, arg)
		}
		current.Reset()
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			current.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			current.WriteByte(c)
		case c == '(':
			depth++
			current.WriteByte(c)
		case c == ')':
			depth--
			if depth < 0 {
				return "", nil, fmt.Errorf("malformed rule %q: unbalanced parentheses", text)
			}
			current.WriteByte(c)
		case c == ',' && depth == 0:
			flush()
		default:
			current.WriteByte(c)
		}
	}
	if depth != 0 || quote != 0 {
		return "", nil, fmt.Errorf("malformed rule %q: unbalanced parentheses or quotes", text)
	}
	flush()
	return name, args, nil
}

// cutKeyword splits "key=value" arguments. Quoted strings and nested rule
// calls are positional, never keywords.
func cutKeyword(arg string) (key, value string, ok bool) {
	eq := strings.IndexByte(arg, '=')
	if eq <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(arg[:eq])
	for _, r := range key {
		if !isIdentRune(r) {
			return "", "", false
		}
	}
	return key, strings.TrimSpace(arg[eq+1:]), true
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// unquote strips a matching pair of single or double quotes.
func unquote(s string) (string, error) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], nil
	}
	return "", fmt.Errorf("expected quoted string, got %q", s)
}
