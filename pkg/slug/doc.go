// Package slug normalizes arbitrary strings into URL-safe slugs.
//
// Make folds case, transliterates to ASCII and collapses every run of characters
// that are not ASCII letters or digits into a single separator. The result
// never starts or ends with a separator.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/permalink/pkg/slug"
//
//	s := slug.Make("Hello, World!")
//	// Output: "hello-world"
//
//	s = slug.Make("Café & Restaurant")
//	// Output: "cafe-restaurant"
//
// # Configuration Options
//
// MaxLength limits the slug length (rune-based):
//
//	slug.Make("Very long title", slug.MaxLength(9))
//	// Output: "very-long"
//
// Separator sets the string used between words:
//
//	slug.Make("Product Name", slug.Separator("_"))
//	// Output: "product_name"
//
// Lowercase controls case conversion:
//
//	slug.Make("Product Name", slug.Lowercase(false))
//	// Output: "Product-Name"
//
// StripChars removes specific characters before processing:
//
//	slug.Make("Price: $100", slug.StripChars("$:"))
//	// Output: "price-100"
//
// CustomReplace applies string replacements before slugification:
//
//	replacements := map[string]string{"&": "and", "@": "at"}
//	slug.Make("Fish & Chips @ Home", slug.CustomReplace(replacements))
//	// Output: "fish-and-chips-at-home"
//
// Make is deterministic: collision suffixes are the caller's concern. The
// permalink engine appends numeric suffixes after checking sibling records.
//
// # Unicode Support
//
// Text outside ASCII is composed with [golang.org/x/text/unicode/norm] and
// transliterated with [github.com/gosimple/unidecode], so accented Latin,
// Cyrillic, Greek and CJK titles all produce a usable slug:
//
//	slug.Make("München straße")    // "munchen-strasse"
//	slug.Make("Zażółć gęślą jaźń") // "zazolc-gesla-jazn"
//	slug.Make("Война и мир")       // "voina-i-mir"
//	slug.Make("東京物語")            // "dong-jing-wu-yu"
//
// Symbols without a transliteration, such as emoji, are dropped.
//
// IsValid checks the canonical lower-kebab form produced with default options.
package slug
