package bel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

var ErrInvalidNamespace = errors.New("bel: invalid namespace")

const (
	DomainOther = "Other"
	// FunctionAbundance marks values usable in any abundance function.
	FunctionAbundance = "A"
)

// Namespace is a BEL namespace (.belns) document.
type Namespace struct {
	Keyword       string
	Name          string
	Domain        string
	Version       string
	QueryURL      string
	Author        string
	Citation      string
	Functions     string
	CaseSensitive bool
	Created       time.Time
	Values        []string
}

// NewNamespace builds a namespace over names. Blank names are dropped and
// the rest are sorted and deduplicated.
func NewNamespace(keyword, name string, names []string) *Namespace {
	seen := make(map[string]struct{}, len(names))
	values := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		values = append(values, n)
	}
	sort.Strings(values)
	return &Namespace{
		Keyword:       keyword,
		Name:          name,
		Domain:        DomainOther,
		Functions:     FunctionAbundance,
		CaseSensitive: true,
		Values:        values,
	}
}

func (n *Namespace) Len() int { return len(n.Values) }

// Write renders n as a .belns document with a [Values] section of
// "name|functions" lines.
func (n *Namespace) Write(w io.Writer) error {
	if strings.TrimSpace(n.Keyword) == "" {
		return fmt.Errorf("%w: empty keyword", ErrInvalidNamespace)
	}
	domain := n.Domain
	if domain == "" {
		domain = DomainOther
	}
	functions := n.Functions
	if functions == "" {
		functions = FunctionAbundance
	}
	name := n.Name
	if name == "" {
		name = n.Keyword
	}
	created := n.Created
	if created.IsZero() {
		created = time.Now()
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("[Namespace]\n")
	fmt.Fprintf(bw, "Keyword=%s\n", n.Keyword)
	fmt.Fprintf(bw, "NameString=%s\n", name)
	fmt.Fprintf(bw, "DomainString=%s\n", domain)
	if n.Version != "" {
		fmt.Fprintf(bw, "VersionString=%s\n", n.Version)
	}
	fmt.Fprintf(bw, "CreatedDateTime=%s\n", created.UTC().Format(time.RFC3339))
	if n.QueryURL != "" {
		fmt.Fprintf(bw, "QueryValueURL=%s\n", n.QueryURL)
	}

	bw.WriteString("\n[Author]\n")
	fmt.Fprintf(bw, "NameString=%s\n", n.Author)

	bw.WriteString("\n[Citation]\n")
	fmt.Fprintf(bw, "NameString=%s\n", n.Citation)

	bw.WriteString("\n[Processing]\n")
	fmt.Fprintf(bw, "CaseSensitiveFlag=%s\n", yesNo(n.CaseSensitive))
	bw.WriteString("DelimiterString=|\n")
	bw.WriteString("CacheableFlag=yes\n")

	bw.WriteString("\n[Values]\n")
	for _, v := range n.Values {
		fmt.Fprintf(bw, "%s|%s\n", strings.ReplaceAll(v, "\n", " "), functions)
	}
	return bw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
