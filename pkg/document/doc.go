// Package document provides Document, a schemaless record implementing
// permalink.Record and permalink.Embedded.
//
// A Document holds named fields in a map and remembers the values it had when it
// was last persisted, so Changed works without a schema:
//
//	doc := document.New("book", map[string]any{"title": "A Thousand Plateaus"})
//	doc.IsNew()          // true
//	doc.MarkPersisted()  // called by stores after a successful write
//	doc.Set("title", "Anti Oedipus")
//	doc.Changed("title") // true
//
// Embedded documents keep a pointer to their parent and the relation name:
//
//	author := document.Embed(doc, "authors", "author", map[string]any{"name": "Gilles Deleuze"})
//
// Stores rebuild loaded documents with Restore, which marks every field as persisted.
package document
