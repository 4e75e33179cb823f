package mcpserver

// NoteFormatContract describes how marginalia reads notes, so LLM consumers
// can write notes whose tags and links are picked up by the index.
const NoteFormatContract = `# Marginalia Note Format

Marginalia indexes two kinds of notes: Markdown (` + "`.md`" + `) and Typst-like
markup (` + "`.typ`" + `). Any other extension is read as Markdown.

## Metadata block

Both formats may start with a YAML metadata block. It must be the very first
thing in the file and the first closing fence ends it.

Markdown:

` + "```" + `markdown
---
title: Yellow Warbler
tags:
  - Biology - Birds
  - songbird
---
` + "```" + `

Markup (the fence sits inside a block comment so the compiler ignores it):

` + "```" + `typst
/*
---
title: Yellow Warbler
tags: [songbird]
---
*/
` + "```" + `

- ` + "`title`" + ` becomes the display name. Without it the file stem is used.
- ` + "`tags`" + ` is a list of strings. A tag written as ` + "`A - B - C`" + ` expands to
  ` + "`#A/B`" + ` and ` + "`#A/C`" + `.
- A block that is not valid YAML, or is a list, makes the note unreadable.

## Markdown

- Links are wikilinks: ` + "`[[Other Note]]`" + ` or ` + "`[[Other Note|label]]`" + `.
- Tags are inline hashtags: ` + "`#birds`" + `, ` + "`#biology/birds`" + `. Hashtags in
  code spans and code blocks are ignored.

## Markup

- Links are calls to ` + "`link`" + `: ` + "`#link(\"Other Note.typ\")[label]`" + `. The target is
  the file stem of the first string argument.
- Tags are calls to ` + "`tag`" + `: ` + "`#tag(\"birds\")`" + ` becomes ` + "`#birds`" + `.
- Calls inside raw text and comments are ignored. Calls nested in content
  blocks, arguments and code blocks are found.

## Identity

A note is addressed by the canonical id of its file stem: Unicode-composed,
cut at the first ` + "`#`" + ` or ` + "`.`" + `, lowercased, with spaces turned into hyphens.
` + "`Yellow Warbler.typ`" + ` has the id ` + "`yellow-warbler`" + `, and so do links to
` + "`[[Yellow Warbler]]`" + ` and ` + "`[[Yellow Warbler#Song]]`" + `.
Use the ` + "`canonical_id`" + ` tool to compute one.
`
