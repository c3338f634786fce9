package epubtext

import (
	"archive/zip"
	"strings"
)

// encryptionFilePath is the standard path for the encryption descriptor.
const encryptionFilePath = "META-INF/encryption.xml"

// sinfFilePath is the path that indicates Apple FairPlay DRM.
const sinfFilePath = "META-INF/sinf.xml"

// Font obfuscation algorithm URIs – these do NOT constitute DRM.
var fontObfuscationAlgorithms = map[string]bool{
	"http://www.idpf.org/2008/embedding": true, // IDPF font obfuscation
	"http://ns.adobe.com/pdf/enc#RC":     true, // Adobe font obfuscation
}

// Known DRM namespace prefixes found in KeyInfo content or algorithm URIs.
var drmSignatures = []string{
	"http://ns.adobe.com/adept",      // Adobe ADEPT
	"http://readium.org/2014/01/lcp", // Readium LCP
}

// checkDRM inspects META-INF/encryption.xml (if present) and determines
// whether the ePub is DRM-protected or merely uses font obfuscation.
//
// Returns:
//   - (false, nil)             – no encryption.xml found or it lists no encrypted data
//   - (true,  nil)             – only font obfuscation entries detected
//   - (false, ErrDRMProtected) – real DRM encryption detected
func checkDRM(zr *zip.Reader) (fontObfuscation bool, err error) {
	// Check for Apple FairPlay indicator first.
	if findFileInsensitive(zr, sinfFilePath) != nil {
		return false, ErrDRMProtected
	}

	f := findFileInsensitive(zr, encryptionFilePath)
	if f == nil {
		return false, nil
	}

	data, err := readZipFile(f)
	if err != nil {
		return false, err
	}

	doc := Parse(string(stripBOM(data)))
	if findLocal(doc, "encryption") == nil {
		// The descriptor exists but not even a lenient parse can recognize
		// it. Assume the worst rather than serving encrypted garbage.
		return false, ErrDRMProtected
	}

	encrypted := findAllLocal(doc, "EncryptedData")
	if len(encrypted) == 0 {
		return false, nil
	}

	for _, ed := range encrypted {
		var algo string
		if m := findLocal(ed, "EncryptionMethod"); m != nil {
			algo = strings.TrimSpace(attrLocal(m, "Algorithm"))
		}

		// Check if this entry is font obfuscation.
		if fontObfuscationAlgorithms[algo] {
			fontObfuscation = true
			continue
		}

		// Check algorithm URI for known DRM signatures.
		if isDRMSignature(algo) {
			return false, ErrDRMProtected
		}

		// Check KeyInfo content for known DRM signatures.
		if ki := findLocal(ed, "KeyInfo"); ki != nil && isDRMSignature(flattenMarkup(ki)) {
			return false, ErrDRMProtected
		}

		// Any EncryptedData that is NOT font obfuscation is treated as DRM.
		return false, ErrDRMProtected
	}

	return fontObfuscation, nil
}

// isDRMSignature checks whether s contains any known DRM namespace or identifier.
func isDRMSignature(s string) bool {
	for _, sig := range drmSignatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}

// flattenMarkup renders a subtree into a searchable string of element names,
// attribute keys and values, and text runs. DRM vendors identify themselves
// through namespace URIs that can appear in any of those places.
func flattenMarkup(root *Node) string {
	var b strings.Builder
	var walk func(*Node)
	walk = func(n *Node) {
		switch n.Type {
		case ElementNode:
			b.WriteString(n.Name)
			b.WriteByte(' ')
			for _, k := range sortedAttrKeys(n.Attributes) {
				b.WriteString(k)
				b.WriteByte('=')
				b.WriteString(n.Attributes[k])
				b.WriteByte(' ')
			}
			for _, c := range n.Children {
				walk(c)
			}
		case TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
	}
	walk(root)
	return b.String()
}
