package eval

import "fmt"

// InstallPrelude registers the built-in directive set. It runs once per
// project build, before any page is evaluated.
func InstallPrelude(ev *Evaluator, version string) {
	ev.Register("md", Markdown{})
	ev.Register("table", Dummy{})
	ev.Register("version", NewVersion(version))
	ev.Register("note", NewAdmonition("Note", "note"))
	ev.Register("warning", NewAdmonition("Warning", "warning"))
	ev.Register("define-template", DefineTemplate{})
	ev.Register("definition-list", DefinitionList{})
	ev.Register("steps", Steps{})
	ev.Register("concat", Concat{})
	ev.Register("include", Include{})
	ev.Register("import", Import{})
	ev.Register("null", Dummy{})
	ev.Register("let", Let{})
	ev.Register("define", Define{})
	ev.Register("theme-config", ThemeConfig{})
	ev.Register("toctree", TocTree{})
	ev.Register("define-ref", RefDefDirective{})
	ev.Register("ref", RefDirective{})

	for level := 1; level <= 6; level++ {
		ev.Register(fmt.Sprintf("h%d", level), NewHeading(level))
	}
}
