// Package bel renders Biological Expression Language documents.
package bel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var ErrInvalidStatement = errors.New("bel: invalid statement")

// Relations used by the built-in sources.
const (
	Regulates   = "regulates"
	Association = "association"
)

// Term is one BEL term, e.g. m(MIRBASE:"hsa-mir-21").
type Term struct {
	Function  string
	Namespace string
	Name      string
}

func MicroRNA(namespace, name string) Term {
	return Term{Function: "m", Namespace: namespace, Name: name}
}
func RNA(namespace, name string) Term { return Term{Function: "r", Namespace: namespace, Name: name} }
func Pathology(namespace, name string) Term {
	return Term{Function: "path", Namespace: namespace, Name: name}
}

func (t Term) String() string {
	return fmt.Sprintf("%s(%s:%s)", t.Function, t.Namespace, quote(t.Name))
}

func (t Term) valid() bool {
	return strings.TrimSpace(t.Function) != "" &&
		strings.TrimSpace(t.Namespace) != "" &&
		strings.TrimSpace(t.Name) != ""
}

// Statement is a subject-relation-object triple with provenance.
type Statement struct {
	Subject  Term
	Relation string
	Object   Term
	Citation string
	Evidence string
}

func (s Statement) String() string {
	return s.Subject.String() + " " + s.Relation + " " + s.Object.String()
}

// Graph is an in-memory BEL document.
type Graph struct {
	Name        string
	Version     string
	Description string
	Statements  []Statement
}

func NewGraph(name, version string) *Graph {
	return &Graph{Name: name, Version: version}
}

// Add appends st after validating its terms.
func (g *Graph) Add(st Statement) error {
	if !st.Subject.valid() || !st.Object.valid() || strings.TrimSpace(st.Relation) == "" {
		return fmt.Errorf("%w: %+v", ErrInvalidStatement, st)
	}
	g.Statements = append(g.Statements, st)
	return nil
}

func (g *Graph) Len() int { return len(g.Statements) }

// Namespaces returns every namespace keyword used, sorted.
func (g *Graph) Namespaces() []string {
	seen := make(map[string]struct{})
	for _, st := range g.Statements {
		seen[st.Subject.Namespace] = struct{}{}
		seen[st.Object.Namespace] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// WriteScript writes g as a BEL Script document. Statements keep insertion
// order; citation and evidence are only re-SET when they change.
func (g *Graph) WriteScript(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "SET DOCUMENT Name = %s\n", quote(g.Name))
	fmt.Fprintf(bw, "SET DOCUMENT Version = %s\n", quote(g.Version))
	if g.Description != "" {
		fmt.Fprintf(bw, "SET DOCUMENT Description = %s\n", quote(g.Description))
	}
	bw.WriteString("\n")

	for _, ns := range g.Namespaces() {
		fmt.Fprintf(bw, "DEFINE NAMESPACE %s AS PATTERN \".*\"\n", ns)
	}
	if g.Len() > 0 {
		bw.WriteString("\n")
	}

	var citation, evidence string
	for _, st := range g.Statements {
		if st.Citation != citation {
			if evidence != "" {
				bw.WriteString("UNSET Evidence\n")
				evidence = ""
			}
			if st.Citation == "" {
				bw.WriteString("UNSET Citation\n")
			} else {
				fmt.Fprintf(bw, "\nSET Citation = {\"PubMed\", %s}\n", quote(st.Citation))
			}
			citation = st.Citation
		}
		if st.Evidence != evidence {
			if st.Evidence == "" {
				bw.WriteString("UNSET Evidence\n")
			} else {
				fmt.Fprintf(bw, "SET Evidence = %s\n", quote(st.Evidence))
			}
			evidence = st.Evidence
		}
		bw.WriteString(st.String())
		bw.WriteString("\n")
	}
	if evidence != "" {
		bw.WriteString("UNSET Evidence\n")
	}
	if citation != "" {
		bw.WriteString("UNSET Citation\n")
	}
	return bw.Flush()
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", " ", "\r", " ")
	return `"` + r.Replace(s) + `"`
}
