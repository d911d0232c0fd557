package epub

import (
	"bytes"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/pkg/errors"
)

const containerPath = "META-INF/container.xml"

const packageMediaType = "application/oebps-package+xml"

// rootfilePath reads META-INF/container.xml and returns the package document
// path. Books without a container are rejected rather than guessed at.
func rootfilePath(a *archive) (string, error) {
	f := a.find(containerPath)
	if f == nil {
		return "", errors.Wrap(ErrMalformedArchive, "missing "+containerPath)
	}
	data, err := a.readFile(f)
	if err != nil {
		return "", errors.Wrap(ErrMalformedArchive, err.Error())
	}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrapf(ErrMalformedArchive, "invalid %s: %s", containerPath, err.Error())
	}

	// Namespace prefixes vary between producers, so match on local name.
	nodes, err := xmlquery.QueryAll(doc, "//*[local-name()='rootfile']")
	if err != nil {
		return "", errors.WithStack(err)
	}

	first := ""
	for _, n := range nodes {
		p := strings.TrimSpace(n.SelectAttr("full-path"))
		if p == "" {
			continue
		}
		if strings.EqualFold(n.SelectAttr("media-type"), packageMediaType) {
			return p, nil
		}
		if first == "" {
			first = p
		}
	}
	if first == "" {
		return "", errors.Wrap(ErrMalformedArchive, "container lists no package document")
	}
	return first, nil
}
