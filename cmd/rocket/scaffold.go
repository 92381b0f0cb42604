package main

// Starter files written by rocket new. The pages double as a short tour
// of the directive language; they must always build cleanly.

const starterConfig = `title: %s
version: 0.1.0

content_dir: content
output: build
theme_dir: theme
syntax_theme: github
pretty_urls: true

serve:
  addr: ":8080"
  live_reload: true

watch:
  debounce_ms: 250

# Optional integrations:
#
# check_links: true
#
# history:
#   enabled: true
#   path: .rocket/history.db
#
# notifications:
#   enabled: true
#   url: nats://localhost:4222
#   subject: rocket.builds
`

const starterIndex = `(h1 welcome "Welcome")

This site is plain Markdown plus directives, compiled by rocket
(version). Edit the pages under content/ and the templates under
theme/, then rebuild.

(note {Run ` + "`rocket serve --watch`" + ` while writing and the browser
reloads itself after every change.})

## Contents

(toctree
  ("About this project" about))
`

const starterAbout = `(h1 about "About this project")

Every page can link to any other through reference anchors. This
sentence links back to (ref welcome) without knowing where that anchor
lives.

## Directive crash course

A call is written ` + "`\\(name arg ...)`" + `. Arguments are bare words,
"quoted strings", or {raw blocks}. Some starters:

(definition-list
  ("note" {Calls out something worth remembering.})
  ("toctree" {Adds entries to the site navigation tree.})
  ("ref" {Links to an anchor defined on any page, even a later one.}))
`

const starterTheme = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} - {{.Site.Title}}</title>
<style>
  body { margin: 0; font-family: system-ui, sans-serif; color: #1f2430; }
  .layout { display: flex; min-height: 100vh; }
  nav { width: 16rem; padding: 1.5rem; background: #f4f5f7; }
  nav ul { list-style: none; padding-left: 1rem; }
  nav a { text-decoration: none; }
  main { flex: 1; padding: 2rem 3rem; max-width: 50rem; }
  a { color: #2458c5; }
  pre { background: #f4f5f7; padding: 1rem; overflow-x: auto; }
  dt { font-weight: 600; margin-top: 0.75rem; }
  .admonition { border-left: 4px solid #2458c5; padding: 0.5rem 1rem; margin: 1rem 0; background: #eef2fb; }
  .admonition-title { font-weight: 600; display: block; margin-bottom: 0.25rem; }
  footer { margin-top: 3rem; font-size: 0.8rem; color: #6b7280; }
</style>
</head>
<body>
<div class="layout">
<nav>
  <p><a href="/">{{.Site.Title}}</a></p>
  {{.Toc}}
</nav>
<main>
{{.Body}}
{{with .Page.lastmod}}<p class="lastmod">Last updated {{.}}</p>{{end}}
<footer>Generated {{.Generated.Date}} by rocket {{.Generated.Version}}</footer>
</main>
</div>
</body>
</html>
`
