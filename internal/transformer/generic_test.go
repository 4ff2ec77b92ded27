package transformer

import (
	"testing"

	"github.com/goccy/go-json"

	xmlparser "xmlstream/internal/parser/xml"
)

func el(tag string, attrs []xmlparser.Attr, text string, children ...*xmlparser.Element) *xmlparser.Element {
	return &xmlparser.Element{Tag: tag, Attrs: attrs, Text: text, Children: children}
}

func marshalRecord(t *testing.T, r Record) string {
	t.Helper()
	b, err := json.Marshal(r.Value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestGenericRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   *xmlparser.Element
		want string
	}{
		{
			name: "text_only_degenerates_to_scalar",
			in:   el("name", nil, "example"),
			want: `{"_tag":"name","_text":"example"}`,
		},
		{
			name: "empty_element_is_null_payload",
			in:   el("empty", nil, ""),
			want: `{"_tag":"empty","_text":null}`,
		},
		{
			name: "single_child_is_scalar_entry",
			in:   el("r", nil, "", el("one", nil, "x")),
			want: `{"_tag":"r","one":"x"}`,
		},
		{
			name: "repeated_children_become_array_in_document_order",
			in: el("r", nil, "",
				el("item", nil, "a"),
				el("item", nil, "b"),
				el("item", nil, "c")),
			want: `{"_tag":"r","item":["a","b","c"]}`,
		},
		{
			name: "tag_groups_keep_first_occurrence_order",
			in: el("r", nil, "",
				el("b", nil, "1"),
				el("a", nil, "2"),
				el("b", nil, "3")),
			want: `{"_tag":"r","b":["1","3"],"a":"2"}`,
		},
		{
			name: "attributes_are_prefixed_strings",
			in:   el("port", []xmlparser.Attr{{Name: "protocol", Value: "tcp"}, {Name: "portid", Value: "22"}}, ""),
			want: `{"_tag":"port","@protocol":"tcp","@portid":"22"}`,
		},
		{
			name: "text_beside_attributes_goes_under_text_key",
			in:   el("note", []xmlparser.Attr{{Name: "lang", Value: "en"}}, "hello"),
			want: `{"_tag":"note","@lang":"en","#text":"hello"}`,
		},
		{
			name: "children_then_attributes_then_text",
			in: el("r", []xmlparser.Attr{{Name: "id", Value: "7"}}, "tail",
				el("c", nil, "v")),
			want: `{"_tag":"r","c":"v","@id":"7","#text":"tail"}`,
		},
		{
			name: "empty_child_is_null_entry",
			in:   el("r", nil, "", el("void", nil, "")),
			want: `{"_tag":"r","void":null}`,
		},
		{
			name: "nested_merge_recurses",
			in: el("r", nil, "",
				el("mid", nil, "",
					el("leaf", nil, "deep"))),
			want: `{"_tag":"r","mid":{"leaf":"deep"}}`,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := GenericRecord(tc.in)
			if rec.Tag != tc.in.Tag {
				t.Errorf("Tag=%q, want %q", rec.Tag, tc.in.Tag)
			}
			if got := marshalRecord(t, rec); got != tc.want {
				t.Errorf("payload=%s, want %s", got, tc.want)
			}
		})
	}
}

func TestGenericArrayLengthMatchesOccurrences(t *testing.T) {
	t.Parallel()

	parent := el("r", nil, "")
	for i := 0; i < 5; i++ {
		parent.Children = append(parent.Children, el("x", nil, ""))
	}
	payload := ToJSON(parent)
	v, ok := payload.Get("x")
	if !ok {
		t.Fatal("missing x entry")
	}
	if got := len(v.Items()); got != 5 {
		t.Fatalf("array length=%d, want 5", got)
	}
}
