package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// AnyValue in expected JSON matches whatever the actual document holds at that key.
const AnyValue = "<<ANY>>"

// MustJSON marshals v or panics.
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// JSONAssertOptions control which parts of the actual document are compared.
type JSONAssertOptions struct {
	// Subset compares only the keys present in expected.
	Subset bool `default:"true"`
	// Ignore drops these keys at any depth from both sides.
	Ignore []string
}

type JSONOption func(*JSONAssertOptions)

// WithIgnoredFields drops the named keys at any depth before comparing.
func WithIgnoredFields(fields ...string) JSONOption {
	return func(o *JSONAssertOptions) { o.Ignore = append(o.Ignore, fields...) }
}

// WithExactKeys requires actual objects to carry no keys beyond expected.
func WithExactKeys() JSONOption {
	return func(o *JSONAssertOptions) { o.Subset = false }
}

// JSONAsserter compares JSON documents structurally and reports an ASCII diff.
type JSONAsserter struct {
	t    TestingT
	opts JSONAssertOptions
}

func NewJSONAsserter(t TestingT) *JSONAsserter {
	a := &JSONAsserter{t: t}
	defaults.SetDefaults(&a.opts)
	return a
}

func (a *JSONAsserter) WithOptions(opts ...JSONOption) *JSONAsserter {
	for _, o := range opts {
		o(&a.opts)
	}
	return a
}

// Assert fails the test when actualJSON does not match expectedJSON.
func (a *JSONAsserter) Assert(actualJSON, expectedJSON string) {
	a.t.Helper()
	if d, err := JSONDiff(expectedJSON, actualJSON, a.opts); err != nil {
		a.t.Errorf("json compare: %v", err)
	} else if d != "" {
		a.t.Errorf("json mismatch:\n%s", d)
	}
}

// JSONDiff returns a readable diff of the two documents, or "" when they match.
func JSONDiff(expectedJSON, actualJSON string, opts JSONAssertOptions) (string, error) {
	var exp, act any
	if err := json.Unmarshal([]byte(expectedJSON), &exp); err != nil {
		return "", fmt.Errorf("expected: %w", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &act); err != nil {
		return "", fmt.Errorf("actual: %w", err)
	}

	ignore := make(map[string]struct{}, len(opts.Ignore))
	for _, k := range opts.Ignore {
		ignore[k] = struct{}{}
	}
	exp = reconcile(exp, act, ignore, opts.Subset)
	act = reconcile(act, nil, ignore, false)

	// gojsondiff only compares objects
	_, expIsList := exp.([]any)
	_, actIsList := act.([]any)
	if expIsList || actIsList {
		exp, act = map[string]any{"list": exp}, map[string]any{"list": act}
	}

	left, _ := json.Marshal(exp)
	right, _ := json.Marshal(act)
	d, err := gojsondiff.New().Compare(left, right)
	if err != nil {
		return "", err
	}
	if !d.Modified() {
		return "", nil
	}
	return formatter.NewAsciiFormatter(exp, formatter.AsciiFormatterConfig{ShowArrayIndex: true}).Format(d)
}

// reconcile walks node alongside its counterpart. It drops ignored keys,
// resolves AnyValue from the counterpart and, with subset, prunes keys of
// the counterpart that node does not mention.
func reconcile(node, other any, ignore map[string]struct{}, subset bool) any {
	switch n := node.(type) {
	case map[string]any:
		o, _ := other.(map[string]any)
		for k := range ignore {
			delete(n, k)
			delete(o, k)
		}
		if subset {
			for k := range o {
				if _, ok := n[k]; !ok {
					delete(o, k)
				}
			}
		}
		for k, v := range n {
			if s, ok := v.(string); ok && s == AnyValue {
				if ov, present := o[k]; present {
					n[k] = ov
				}
				continue
			}
			n[k] = reconcile(v, o[k], ignore, subset)
		}
		return n
	case []any:
		o, _ := other.([]any)
		for i := range n {
			var ov any
			if i < len(o) {
				ov = o[i]
			}
			n[i] = reconcile(n[i], ov, ignore, subset)
		}
		return n
	default:
		return node
	}
}
