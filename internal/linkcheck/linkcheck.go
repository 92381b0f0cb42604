// Package linkcheck verifies internal links in a generated site: every
// href or image source that points inside the site must resolve to a file
// in the output tree. External links are out of scope; broken internal
// links are reported as build warnings, not failures.
package linkcheck

import (
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
)

// Issue is one broken internal link found in the generated site.
type Issue struct {
	Page   string `json:"page"`   // output-relative HTML file containing the link
	URL    string `json:"url"`    // the link as written in the page
	Target string `json:"target"` // output-relative path that was checked
}

// Checker verifies internal links against an output tree.
type Checker struct {
	root  string
	files map[string]bool
}

// New indexes the output tree rooted at root.
func New(root string) (*Checker, error) {
	files := make(map[string]bool)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, rerrors.FileSystemError("index output tree", err)
	}
	return &Checker{root: root, files: files}, nil
}

// Check parses every generated HTML file and reports internal links whose
// target does not exist.
func (c *Checker) Check() ([]Issue, error) {
	pages := make([]string, 0, len(c.files))
	for f := range c.files {
		if strings.HasSuffix(f, ".html") {
			pages = append(pages, f)
		}
	}
	sort.Strings(pages)

	var issues []Issue
	for _, page := range pages {
		f, err := os.Open(filepath.Join(c.root, filepath.FromSlash(page)))
		if err != nil {
			return nil, rerrors.FileSystemError("open generated page", err)
		}
		links, err := extractLinks(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}

		for _, link := range links {
			target, check := c.resolve(page, link)
			if !check {
				continue
			}
			if !c.exists(target) {
				issues = append(issues, Issue{Page: page, URL: link, Target: target})
			}
		}
	}
	return issues, nil
}

// resolve turns a link into an output-relative target path. The second
// return is false for links that are not internal site paths.
func (c *Checker) resolve(page, link string) (string, bool) {
	if link == "" || strings.HasPrefix(link, "#") {
		return "", false
	}
	for _, prefix := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(link, prefix) {
			return "", false
		}
	}

	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if u.Path == "" {
		return "", false
	}

	p := u.Path
	if path.IsAbs(p) {
		p = strings.TrimPrefix(p, "/")
	} else {
		p = path.Join(path.Dir(page), p)
	}
	p = path.Clean(p)
	if p == "." {
		p = ""
	}
	return p, true
}

// exists accepts a target if it names a file directly, a non-pretty page,
// or a pretty-URL directory with an index.
func (c *Checker) exists(target string) bool {
	if target == "" {
		return c.files["index.html"]
	}
	for _, candidate := range []string{target, target + ".html", target + "/index.html"} {
		if c.files[candidate] {
			return true
		}
	}
	return false
}

// extractLinks collects the href of every anchor and the src of every
// image in the document.
func extractLinks(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, rerrors.New(rerrors.CategoryValidation, rerrors.SeverityWarning, "failed to parse generated HTML").WithContext("cause", err.Error())
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				if href := getAttr(n, "href"); href != "" {
					links = append(links, href)
				}
			case "img":
				if src := getAttr(n, "src"); src != "" {
					links = append(links, src)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links, nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
