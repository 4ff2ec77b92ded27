package transformer

import (
	"xmlstream/internal/jsonval"
	xmlparser "xmlstream/internal/parser/xml"
)

// ToJSON maps an arbitrary element subtree to a JSON value.
//
// Merge rules:
//   - no attributes, no children: the trimmed text, or null when empty;
//   - children grouped by tag in first-occurrence order; one occurrence
//     yields a scalar entry, several yield an array in document order;
//   - attributes become entries keyed AttrPrefix+name, always strings;
//   - non-empty text next to children or attributes goes under TextKey.
func ToJSON(el *xmlparser.Element) jsonval.Value {
	hasChildren := len(el.Children) > 0
	hasAttrs := len(el.Attrs) > 0

	if !hasChildren && !hasAttrs {
		if el.Text == "" {
			return jsonval.Null()
		}
		return jsonval.String(el.Text)
	}

	obj := jsonval.NewObject()

	if hasChildren {
		var order []string
		byTag := make(map[string][]jsonval.Value)
		for _, c := range el.Children {
			if _, seen := byTag[c.Tag]; !seen {
				order = append(order, c.Tag)
			}
			byTag[c.Tag] = append(byTag[c.Tag], ToJSON(c))
		}
		for _, tag := range order {
			vals := byTag[tag]
			if len(vals) == 1 {
				obj.Set(tag, vals[0])
			} else {
				obj.Set(tag, jsonval.Array(vals...))
			}
		}
	}

	for _, a := range el.Attrs {
		obj.Set(AttrPrefix+a.Name, jsonval.String(a.Value))
	}

	if el.Text != "" {
		obj.Set(TextKey, jsonval.String(el.Text))
	}

	return obj.Value()
}

// GenericRecord wraps the ToJSON payload as a record object. Object payloads
// are spliced in after TagKey; scalar or null payloads degenerate to a
// ScalarKey entry.
func GenericRecord(el *xmlparser.Element) Record {
	payload := ToJSON(el)

	obj := jsonval.NewObject()
	obj.Set(TagKey, jsonval.String(el.Tag))
	if payload.Kind() == jsonval.KindObject {
		for _, m := range payload.Members() {
			obj.Set(m.Key, m.Value)
		}
	} else {
		obj.Set(ScalarKey, payload)
	}

	return Record{Tag: el.Tag, Value: obj.Value()}
}
