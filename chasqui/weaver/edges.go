package weaver

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/cairn"
	"github.com/teranos/yanantin/contentaddr"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
	"github.com/teranos/yanantin/version"
)

// Namespace seeds deterministic composition edge ids.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/teranos/yanantin/weaver"))

// Source identifies the weaver in edge provenance.
var Source = models.SourceIdentifier{
	Identifier:  uuid.NewSHA1(Namespace, []byte("composition-weaver")),
	Version:     version.Get().Provenance(),
	Description: "composition weaver",
}

// EdgeRelation maps a declaration to the stored relation type. Relations
// that deny a link (did_not_read, does_not_modify) have no edge.
func EdgeRelation(r Relation) (models.RelationType, bool) {
	switch r {
	case ComposesWith, Connects, CompositionEquation:
		return models.RelationComposesWith, true
	case DoesNotComposeWith:
		return models.RelationDoesNotComposeWith, true
	case Predecessor, SuccessorTo:
		return models.RelationRefines, true
	case Corrects:
		return models.RelationCorrects, true
	case Bridges:
		return models.RelationBridges, true
	case BranchesFrom:
		return models.RelationBranchesFrom, true
	case OnlyRead, Read, Traversed:
		return models.RelationReads, true
	}
	return "", false
}

// Resolver maps a tensor name such as "T5" to a stored tensor id.
type Resolver func(name string) (uuid.UUID, bool)

// StoreResolver resolves names against the tensors in store. Ingest stamps
// each tensor's name as its provenance author instance id.
func StoreResolver(store apacheta.TensorStore) (Resolver, error) {
	tensors, err := store.ListTensors()
	if err != nil {
		return nil, errors.Wrap(err, "list tensors for name resolution")
	}
	byName := make(map[string]uuid.UUID, len(tensors))
	for _, t := range tensors {
		if _, ok := cairn.TensorNumber(t.Provenance.AuthorInstanceID); !ok {
			continue
		}
		if _, dup := byName[t.Provenance.AuthorInstanceID]; !dup {
			byName[t.Provenance.AuthorInstanceID] = t.ID
		}
	}
	return func(name string) (uuid.UUID, bool) {
		id, ok := byName[name]
		return id, ok
	}, nil
}

// ToEdges turns declarations into composition edges. Read edges carry the
// target's position as their ordering. Declarations whose source or target
// cannot be resolved are returned as unresolved names.
func ToEdges(decls []Declaration, resolve Resolver, clock *models.AuthorClock) ([]models.CompositionEdge, []string) {
	var edges []models.CompositionEdge
	var unresolved []string
	missing := map[string]bool{}
	seen := map[uuid.UUID]bool{}
	note := func(name string) {
		if !missing[name] {
			missing[name] = true
			unresolved = append(unresolved, name)
		}
	}

	for _, d := range decls {
		rel, ok := EdgeRelation(d.Relation)
		if !ok {
			continue
		}
		from, ok := resolve(d.Source)
		if !ok {
			note(d.Source)
			continue
		}
		for i, target := range d.Targets {
			to, ok := resolve(target)
			if !ok {
				note(target)
				continue
			}
			id := uuid.NewSHA1(Namespace, []byte(from.String()+"|"+string(rel)+"|"+to.String()))
			if seen[id] {
				continue
			}
			seen[id] = true
			edge := models.CompositionEdge{
				ID:           id,
				FromTensor:   from,
				ToTensor:     to,
				RelationType: rel,
				Provenance:   clock.Envelope(from),
			}
			if rel == models.RelationReads {
				ordering := i
				edge.Ordering = &ordering
			}
			if rel == models.RelationBridges {
				edge.AuthoredMapping = d.Sentence
			}
			edges = append(edges, edge)
		}
	}
	return edges, unresolved
}

// Weaver reads tensor files and optionally records their edges in a store.
type Weaver struct {
	store  apacheta.TensorStore
	clock  *models.AuthorClock
	logger *zap.SugaredLogger
}

// New creates a weaver. store may be nil when edges are only reported.
func New(store apacheta.TensorStore, log *zap.SugaredLogger) *Weaver {
	return &Weaver{
		store:  store,
		clock:  models.NewAuthorClock(Source, "deterministic", "weaver"),
		logger: logger.OrNop(log).Named("weaver"),
	}
}

// FileResult holds the declarations woven from one file.
type FileResult struct {
	Path         string        `json:"path"`
	Source       string        `json:"source"`
	Declarations []Declaration `json:"declarations"`
}

// WeaveFile extracts declarations from one tensor file. The tensor name
// comes from the filename.
func (w *Weaver) WeaveFile(path string) (FileResult, error) {
	name, ok := cairn.TensorName(filepath.Base(path))
	if !ok {
		return FileResult{}, errors.Newf("cannot name tensor for %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, errors.Wrapf(err, "read %s", path)
	}
	decls := Weave(name, string(data))
	if decls == nil {
		decls = []Declaration{}
	}
	return FileResult{Path: path, Source: name, Declarations: decls}, nil
}

// WeavePath weaves a single file or every markdown file under a directory.
// Files without a tensor name are skipped.
func (w *Weaver) WeavePath(path string) ([]FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	files := []string{path}
	if info.IsDir() {
		if files, err = contentaddr.MarkdownFiles(path); err != nil {
			return nil, err
		}
	}
	var out []FileResult
	for _, f := range files {
		res, err := w.WeaveFile(f)
		if err != nil {
			w.logger.Debugw(sym.Weave+" skipped", logger.FieldFile, f, logger.FieldError, err)
			continue
		}
		w.logger.Debugw(sym.Weave+" woven", logger.FieldFile, f, logger.FieldCount, len(res.Declarations))
		out = append(out, res)
	}
	return out, nil
}

// StoreResult summarises edges written to the store.
type StoreResult struct {
	Stored     int      `json:"stored"`
	Existing   int      `json:"existing"`
	Unresolved []string `json:"unresolved"`
}

// Store resolves declarations against the store's tensors and writes the
// resulting edges. Edges that already exist are counted, not failed.
func (w *Weaver) Store(results []FileResult) (StoreResult, error) {
	if w.store == nil {
		return StoreResult{}, errors.New("weaver has no store")
	}
	resolve, err := StoreResolver(w.store)
	if err != nil {
		return StoreResult{}, err
	}
	var decls []Declaration
	for _, r := range results {
		decls = append(decls, r.Declarations...)
	}
	edges, unresolved := ToEdges(decls, resolve, w.clock)
	res := StoreResult{Unresolved: unresolved}
	if res.Unresolved == nil {
		res.Unresolved = []string{}
	}
	for _, e := range edges {
		switch err := w.store.StoreCompositionEdge(e); {
		case err == nil:
			res.Stored++
		case errors.IsImmutable(err):
			res.Existing++
		default:
			return res, errors.Wrapf(err, "store edge %s", e.ID)
		}
	}
	w.logger.Infow(sym.Compose+" edges woven",
		"stored", res.Stored,
		"existing", res.Existing,
		"unresolved", len(res.Unresolved))
	return res, nil
}
