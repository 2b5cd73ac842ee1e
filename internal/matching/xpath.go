package matching

import (
	"strings"

	"github.com/beevik/etree"
)

// ParseXML parses body as an XML document. Returns nil for empty or
// malformed input.
func ParseXML(body []byte) *etree.Document {
	if len(body) == 0 {
		return nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil || doc.Root() == nil {
		return nil
	}
	return doc
}

// MatchXPath checks if a document matches all XPath conditions.
// Each condition maps an XPath expression to an expected value.
func MatchXPath(doc *etree.Document, conditions map[string]string) bool {
	if doc == nil {
		return false
	}
	for xpath, expected := range conditions {
		actual, ok := ExtractXPath(doc, xpath)
		if !ok || actual != expected {
			return false
		}
	}
	return true
}

// ExtractXPath extracts the text value at the given XPath from a document.
//
// Supported XPath syntax:
//   - /path/to/element - absolute path
//   - //element - find anywhere in document
//   - /path/to/element/@attr - attribute value
//   - /path/to/element[1] - indexed access (1-based)
func ExtractXPath(doc *etree.Document, xpath string) (string, bool) {
	if doc == nil || xpath == "" {
		return "", false
	}

	if elemPath, attrName, ok := strings.Cut(xpath, "/@"); ok {
		elem, err := findElement(doc, elemPath)
		if err != nil || elem == nil {
			return "", false
		}
		attr := elem.SelectAttr(attrName)
		if attr == nil {
			return "", false
		}
		return attr.Value, true
	}

	elem, err := findElement(doc, xpath)
	if err != nil || elem == nil {
		return "", false
	}
	return strings.TrimSpace(elem.Text()), true
}

// findElement wraps etree's path compilation so malformed paths surface as
// errors instead of panics.
func findElement(doc *etree.Document, xpath string) (*etree.Element, error) {
	path, err := etree.CompilePath(xpath)
	if err != nil {
		return nil, err
	}
	return doc.FindElementPath(path), nil
}

// ValidateXPath checks an XPath expression at load time.
func ValidateXPath(xpath string) error {
	elemPath, _, _ := strings.Cut(xpath, "/@")
	_, err := etree.CompilePath(elemPath)
	return err
}
