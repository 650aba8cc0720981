package htmldoc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// simpleSelector is one compound selector: tag, #id and any number of
// .class parts, for example "div#app.main". Combinators are not supported;
// mount targets are single elements.
type simpleSelector struct {
	tag     string
	id      string
	classes []string
}

func parseSelector(s string) (simpleSelector, error) {
	var sel simpleSelector
	s = strings.TrimSpace(s)
	if s == "" {
		return sel, fmt.Errorf("empty selector")
	}
	if strings.ContainsAny(s, " >+~[],:") {
		return sel, fmt.Errorf("unsupported selector %q", s)
	}

	part := func(i int) (string, int) {
		j := i
		for j < len(s) && s[j] != '#' && s[j] != '.' {
			j++
		}
		return s[i:j], j
	}

	i := 0
	if s[0] != '#' && s[0] != '.' {
		sel.tag, i = part(0)
		sel.tag = strings.ToLower(sel.tag)
	}
	for i < len(s) {
		kind := s[i]
		var name string
		name, i = part(i + 1)
		if name == "" {
			return sel, fmt.Errorf("empty %c component in selector %q", kind, s)
		}
		if kind == '#' {
			sel.id = name
		} else {
			sel.classes = append(sel.classes, name)
		}
	}
	return sel, nil
}

func (sel simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if sel.tag != "" && n.Data != sel.tag {
		return false
	}
	if sel.id != "" && attr(n, "id") != sel.id {
		return false
	}
	if len(sel.classes) > 0 {
		have := strings.Fields(attr(n, "class"))
		for _, want := range sel.classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	return true
}

// find returns the first match in document order.
func find(n *html.Node, sel simpleSelector) *html.Node {
	if sel.matches(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, sel); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
