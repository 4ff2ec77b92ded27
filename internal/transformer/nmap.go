package transformer

import (
	"strconv"

	"xmlstream/internal/jsonval"
	xmlparser "xmlstream/internal/parser/xml"
)

// HostTag is the record-boundary element of nmap scan reports.
const HostTag = "host"

// HostRecord extracts one nmap <host> subtree into a compact record.
//
// Field policy is sparse: a key appears only when the source data exists.
// The two exceptions are port ids and uptime seconds, which are always
// present but degrade to null when missing or non-numeric. Extraction never
// fails; anomalies become omitted keys or nulls.
func HostRecord(host *xmlparser.Element) Record {
	obj := jsonval.NewObject()

	if v, ok := host.Attr("starttime"); ok {
		obj.Set("starttime", jsonval.String(v))
	}
	if status := host.Find("status"); status != nil {
		if v, ok := status.Attr("state"); ok {
			obj.Set("status", jsonval.String(v))
		}
	}

	if addrs := hostAddresses(host); len(addrs) > 0 {
		obj.Set("addresses", jsonval.Array(addrs...))
	}
	if names := hostNames(host); len(names) > 0 {
		obj.Set("hostnames", jsonval.Array(names...))
	}
	if matches := osMatches(host); len(matches) > 0 {
		obj.Set("osmatch", jsonval.Array(matches...))
	}
	if ports := hostPorts(host); len(ports) > 0 {
		obj.Set("ports", jsonval.Array(ports...))
	}
	if scripts := hostScripts(host); len(scripts) > 0 {
		obj.Set("hostscripts", jsonval.Array(scripts...))
	}

	if up := host.Find("uptime"); up != nil {
		u := jsonval.NewObject()
		u.Set("seconds", nullableInt(up, "seconds"))
		if v, ok := up.Attr("lastboot"); ok {
			u.Set("lastboot", jsonval.String(v))
		}
		obj.Set("uptime", u.Value())
	}

	obj.Set(TagKey, jsonval.String(HostTag))
	return Record{Tag: HostTag, Value: obj.Value()}
}

func hostAddresses(host *xmlparser.Element) []jsonval.Value {
	var out []jsonval.Value
	for _, a := range host.FindAll("address") {
		out = append(out, attrObject(a, "addr", "addrtype", "vendor"))
	}
	return out
}

func hostNames(host *xmlparser.Element) []jsonval.Value {
	hn := host.Find("hostnames")
	if hn == nil {
		return nil
	}
	var out []jsonval.Value
	for _, h := range hn.FindAll("hostname") {
		out = append(out, attrObject(h, "name", "type"))
	}
	return out
}

func osMatches(host *xmlparser.Element) []jsonval.Value {
	osEl := host.Find("os")
	if osEl == nil {
		return nil
	}
	var out []jsonval.Value
	for _, m := range osEl.FindAll("osmatch") {
		item := jsonval.NewObject()
		setAttr(item, m, "name")
		setAttr(item, m, "accuracy")

		var classes []jsonval.Value
		for _, oc := range m.FindAll("osclass") {
			classes = append(classes,
				attrObject(oc, "type", "vendor", "osfamily", "osgen", "accuracy"))
		}
		if len(classes) > 0 {
			item.Set("osclass", jsonval.Array(classes...))
		}
		out = append(out, item.Value())
	}
	return out
}

func hostPorts(host *xmlparser.Element) []jsonval.Value {
	ports := host.Find("ports")
	if ports == nil {
		return nil
	}
	var out []jsonval.Value
	for _, p := range ports.FindAll("port") {
		port := jsonval.NewObject()
		setAttr(port, p, "protocol")
		port.Set("portid", nullableInt(p, "portid"))

		if state := p.Find("state"); state != nil {
			setAttr(port, state, "state")
			setAttr(port, state, "reason")
		}
		if svc := portService(p.Find("service")); !svc.IsNull() {
			port.Set("service", svc)
		}
		if scripts := scriptEntries(p.FindAll("script")); len(scripts) > 0 {
			port.Set("scripts", jsonval.Array(scripts...))
		}
		out = append(out, port.Value())
	}
	return out
}

func portService(service *xmlparser.Element) jsonval.Value {
	if service == nil {
		return jsonval.Null()
	}
	svc := jsonval.NewObject()
	for _, k := range []string{"name", "product", "version", "extrainfo", "tunnel", "method", "conf"} {
		setAttr(svc, service, k)
	}
	var cpes []jsonval.Value
	for _, c := range service.FindAll("cpe") {
		if c.Text != "" {
			cpes = append(cpes, jsonval.String(c.Text))
		}
	}
	if len(cpes) > 0 {
		svc.Set("cpe", jsonval.Array(cpes...))
	}
	if svc.Len() == 0 {
		return jsonval.Null()
	}
	return svc.Value()
}

func hostScripts(host *xmlparser.Element) []jsonval.Value {
	var out []jsonval.Value
	for _, hs := range host.FindAll("hostscript") {
		out = append(out, scriptEntries(hs.FindAll("script"))...)
	}
	return out
}

func scriptEntries(scripts []*xmlparser.Element) []jsonval.Value {
	var out []jsonval.Value
	for _, s := range scripts {
		out = append(out, attrObject(s, "id", "output"))
	}
	return out
}

// attrObject builds an object from the listed attributes, keeping only the
// ones present on the element.
func attrObject(el *xmlparser.Element, attrs ...string) jsonval.Value {
	obj := jsonval.NewObject()
	for _, name := range attrs {
		setAttr(obj, el, name)
	}
	return obj.Value()
}

func setAttr(obj *jsonval.ObjectBuilder, el *xmlparser.Element, name string) {
	if v, ok := el.Attr(name); ok {
		obj.Set(name, jsonval.String(v))
	}
}

// nullableInt parses an integer attribute, degrading to null when the
// attribute is missing or non-numeric.
func nullableInt(el *xmlparser.Element, name string) jsonval.Value {
	v, ok := el.Attr(name)
	if !ok {
		return jsonval.Null()
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return jsonval.Null()
	}
	return jsonval.Int(n)
}
