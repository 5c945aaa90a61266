// Package registry aggregates discovered handlers into the lookup structure
// the server routes every request through. Categories are a closed set: only
// the allow-listed categories below ever reach the transport registration
// step, no matter what a provider declares.
package registry

import (
	"io"
	"log"

	"github.com/mehmetkoksal-w/lingua/internal/provider"
	"github.com/mehmetkoksal-w/lingua/internal/selector"
)

// Category identifies a protocol operation kind.
type Category string

const (
	CategoryDocumentSync   Category = "document-sync"
	CategoryDefinition     Category = "definition"
	CategoryHover          Category = "hover"
	CategoryCompletion     Category = "completion"
	CategorySignatureHelp  Category = "signature-help"
	CategoryRename         Category = "rename"
	CategoryDocumentSymbol Category = "document-symbol"
	CategoryDiagnostics    Category = "diagnostics"
)

// Registered is the fixed allow-list of categories the server registers with
// the transport. Order here is the registration order.
var Registered = []Category{
	CategoryDocumentSync,
	CategoryDefinition,
	CategoryHover,
	CategoryCompletion,
	CategorySignatureHelp,
	CategoryRename,
	CategoryDocumentSymbol,
	CategoryDiagnostics,
}

// Descriptor ties one handler instance to its category, language, and the
// selector computed for that language.
type Descriptor struct {
	Handler  any
	Category Category
	Language string
	Selector selector.DocumentSelector
}

// Collection groups descriptors sharing (category, language).
type Collection struct {
	Category Category
	Language string
	Selector selector.DocumentSelector
	Handlers []any
}

// Registry maps each category to its collections in discovery order. Built
// once during composition; read-only afterward, safe for concurrent reads.
type Registry struct {
	byCategory map[Category][]*Collection
	all        []any
}

// Build walks every provider, derives a descriptor per handler interface it
// implements, and groups the descriptors into collections. A handler whose
// language has no selector (no provider declared it) is kept with an empty
// selector rather than rejected: a handler with no routed files must not
// prevent the server from starting. Downstream routing treats an empty
// selector as matching nothing.
func Build(providers []provider.CapabilityProvider, selectors map[string]selector.DocumentSelector, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	r := &Registry{byCategory: make(map[Category][]*Collection)}
	index := make(map[Category]map[string]*Collection)

	add := func(cat Category, lang string, sel selector.DocumentSelector, h any) {
		if _, ok := index[cat]; !ok {
			index[cat] = make(map[string]*Collection)
		}
		coll, ok := index[cat][lang]
		if !ok {
			coll = &Collection{Category: cat, Language: lang, Selector: sel}
			index[cat][lang] = coll
			r.byCategory[cat] = append(r.byCategory[cat], coll)
		}
		coll.Handlers = append(coll.Handlers, h)
	}

	for _, p := range providers {
		r.all = append(r.all, p)

		lang := p.Language()
		sel, ok := selectors[lang]
		if !ok {
			logger.Printf("no selector for language %q; registering handlers with an empty selector", lang)
			sel = selector.DocumentSelector{Language: lang}
		}

		for _, cat := range categoriesOf(p) {
			add(cat, lang, sel, p)
		}
	}

	return r
}

// categoriesOf returns the categories a provider's handler interfaces cover.
// The type switch is the closed-set replacement for metadata-based lookup: a
// provider routes only through interfaces it actually implements.
func categoriesOf(p provider.CapabilityProvider) []Category {
	var cats []Category
	if _, ok := p.(provider.DocumentSyncHandler); ok {
		cats = append(cats, CategoryDocumentSync)
	}
	if _, ok := p.(provider.DefinitionHandler); ok {
		cats = append(cats, CategoryDefinition)
	}
	if _, ok := p.(provider.HoverHandler); ok {
		cats = append(cats, CategoryHover)
	}
	if _, ok := p.(provider.CompletionHandler); ok {
		cats = append(cats, CategoryCompletion)
	}
	if _, ok := p.(provider.SignatureHelpHandler); ok {
		cats = append(cats, CategorySignatureHelp)
	}
	if _, ok := p.(provider.RenameHandler); ok {
		cats = append(cats, CategoryRename)
	}
	if _, ok := p.(provider.DocumentSymbolHandler); ok {
		cats = append(cats, CategoryDocumentSymbol)
	}
	if _, ok := p.(provider.DiagnosticsHandler); ok {
		cats = append(cats, CategoryDiagnostics)
	}
	return cats
}

// ByCategory returns the collections registered for a category, in discovery
// order. Unknown categories yield an empty slice, never an error.
func (r *Registry) ByCategory(cat Category) []*Collection {
	return r.byCategory[cat]
}

// ForDocument returns the collections of a category whose selector matches
// the given file path, in discovery order.
func (r *Registry) ForDocument(cat Category, path string) []*Collection {
	var out []*Collection
	for _, coll := range r.byCategory[cat] {
		if coll.Selector.Matches(path) {
			out = append(out, coll)
		}
	}
	return out
}

// All returns every discovered handler instance in discovery order, including
// instances that route through no registered category. Registration never
// consults this list; it exists for introspection.
func (r *Registry) All() []any {
	return r.all
}
