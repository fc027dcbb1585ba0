// Package resolver implements the name-resolution stage of the compiler
// pipeline (source text -> AST -> Resolver -> SSIR -> back-ends).
//
// It sits between wgsl.Parse and wgsl.Lower: it walks a parsed *wgsl.Module
// and builds the symbol/entry-point tables described for the WGSL front
// end, without touching the IR. Lowering may consult a *Table instead of
// re-deriving the same facts about identifiers, entry points and
// transitively-used bindings.
package resolver

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/shaderkit/ssirc/wgsl"
)

// SymbolKind classifies a resolved symbol.
type SymbolKind uint8

const (
	// SymbolGlobal is a module-scope variable, const, override or function.
	SymbolGlobal SymbolKind = iota
	// SymbolParam is a function parameter.
	SymbolParam
	// SymbolLocal is a var/let/const declared inside a function body.
	SymbolLocal
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolGlobal:
		return "global"
	case SymbolParam:
		return "param"
	case SymbolLocal:
		return "local"
	default:
		return "unknown"
	}
}

// UnresolvedSymbol is the sentinel id used by IdentSymbol when an
// identifier did not resolve to any declaration. Resolution never panics
// on unresolved names; callers check for this sentinel instead.
const UnresolvedSymbol = -1

// Symbol is a single resolved declaration: a global, a function
// parameter, or a function-local variable.
type Symbol struct {
	ID      int
	Kind    SymbolKind
	Name    string
	Decl    wgsl.Node  // the declaring AST node
	Func    *wgsl.FunctionDecl // enclosing function, nil for globals

	Group          *uint32
	Binding        *uint32
	MinBindingSize *uint32
}

// NumericType enumerates the scalar kinds the vertex-input/fragment-output
// extraction in §4.3 cares about.
type NumericType uint8

const (
	NumericF32 NumericType = iota
	NumericI32
	NumericU32
	NumericF16
	NumericBool
	NumericUnknown
)

func (n NumericType) byteSize() uint32 {
	switch n {
	case NumericF16:
		return 2
	case NumericF32, NumericI32, NumericU32, NumericBool:
		return 4
	default:
		return 4
	}
}

// Slot describes one vertex input or fragment output location.
type Slot struct {
	Location   uint32
	Components uint32
	Type       NumericType
	ByteSize   uint32 // Components * scalar byte size
}

// EntryPoint describes one @vertex/@fragment/@compute function.
type EntryPoint struct {
	Name     string
	Stage    Stage
	Function *wgsl.FunctionDecl

	// UsedBindings is the transitive closure (over the call graph) of
	// every binding-variable symbol id referenced from this entry
	// point's body or any function it (transitively) calls.
	UsedBindings []int

	// VertexInputs is populated for Stage == StageVertex only.
	VertexInputs []Slot
	// FragmentOutputs is populated for Stage == StageFragment only.
	FragmentOutputs []Slot
}

// Stage mirrors the WGSL entry-point stage attributes.
type Stage uint8

const (
	StageUnknown Stage = iota
	StageVertex
	StageFragment
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// Table is the output of Build: the full set of resolved symbols, the
// ident->symbol map and the per-entry-point derived metadata described in
// spec §3.2.
type Table struct {
	Symbols     []*Symbol
	EntryPoints []*EntryPoint

	identSymbol map[*wgsl.Ident]int
	byName      map[string]int // global/function name -> symbol id
	structs     map[string]*wgsl.StructDecl
}

// IdentSymbol returns the symbol id an identifier node resolved to, or
// UnresolvedSymbol if it did not bind to any declaration.
func (t *Table) IdentSymbol(id *wgsl.Ident) int {
	if sym, ok := t.identSymbol[id]; ok {
		return sym
	}
	return UnresolvedSymbol
}

// Symbol looks up a resolved symbol by id. Returns nil for an
// out-of-range or UnresolvedSymbol id.
func (t *Table) Symbol(id int) *Symbol {
	if id < 0 || id >= len(t.Symbols) {
		return nil
	}
	return t.Symbols[id]
}

type scope struct {
	names  map[string]int
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{names: make(map[string]int), parent: parent}
}

func (s *scope) define(name string, id int) {
	s.names[name] = id
}

func (s *scope) lookup(name string) (int, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if id, ok := cur.names[name]; ok {
			return id, true
		}
	}
	return 0, false
}

// builder accumulates the Table while walking the AST.
type builder struct {
	table *Table
	log   *logrus.Logger

	// callGraph maps a function name to the set of function names it
	// (directly) calls, discovered while walking call expressions.
	callGraph map[string]map[string]struct{}
	// globalUses maps a function name to the set of global-variable
	// symbol ids it directly references.
	globalUses map[string]map[int]struct{}
	funcByName map[string]*wgsl.FunctionDecl
}

// Build runs the declaration pass and the body pass over ast and returns
// the resulting symbol/entry-point tables. Build never returns an error
// for malformed-but-parseable input; resolution failures degrade to the
// UnresolvedSymbol sentinel per spec §8 property 2. An error is only
// returned for a nil module.
func Build(ast *wgsl.Module) (*Table, error) {
	return BuildWithLogger(ast, logrus.StandardLogger())
}

// BuildWithLogger is Build with an explicit logger, so a host application
// (or the CLI) can route resolver diagnostics through its own logrus
// instance instead of the package default.
func BuildWithLogger(ast *wgsl.Module, log *logrus.Logger) (*Table, error) {
	if ast == nil {
		return nil, errors.New("resolver: nil module")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	b := &builder{
		table: &Table{
			identSymbol: make(map[*wgsl.Ident]int),
			byName:      make(map[string]int),
			structs:     make(map[string]*wgsl.StructDecl),
		},
		log:        log,
		callGraph:  make(map[string]map[string]struct{}),
		globalUses: make(map[string]map[int]struct{}),
		funcByName: make(map[string]*wgsl.FunctionDecl),
	}

	b.declarationPass(ast)
	b.bodyPass(ast)
	b.finalizeEntryPoints()

	return b.table, nil
}

func (b *builder) newSymbol(kind SymbolKind, name string, decl wgsl.Node, fn *wgsl.FunctionDecl) int {
	id := len(b.table.Symbols)
	b.table.Symbols = append(b.table.Symbols, &Symbol{
		ID:   id,
		Kind: kind,
		Name: name,
		Decl: decl,
		Func: fn,
	})
	return id
}

// declarationPass walks top-level declarations, assigning each
// global/function/struct a fresh symbol id and recording @group/@binding
// attribute payloads, per spec §4.3 step 1.
func (b *builder) declarationPass(ast *wgsl.Module) {
	for _, s := range ast.Structs {
		b.table.structs[s.Name] = s
	}
	for _, v := range ast.GlobalVars {
		id := b.newSymbol(SymbolGlobal, v.Name, v, nil)
		sym := b.table.Symbols[id]
		group, binding, minSize := groupBindingAttrs(v.Attributes)
		sym.Group, sym.Binding, sym.MinBindingSize = group, binding, minSize
		b.table.byName[v.Name] = id
	}
	for _, c := range ast.Constants {
		id := b.newSymbol(SymbolGlobal, c.Name, c, nil)
		b.table.byName[c.Name] = id
	}
	for _, f := range ast.Functions {
		id := b.newSymbol(SymbolGlobal, f.Name, f, nil)
		b.table.byName[f.Name] = id
		b.funcByName[f.Name] = f
		b.callGraph[f.Name] = make(map[string]struct{})
		b.globalUses[f.Name] = make(map[int]struct{})

		if stage := entryPointStage(f.Attributes); stage != StageUnknown {
			b.table.EntryPoints = append(b.table.EntryPoints, &EntryPoint{
				Name:     f.Name,
				Stage:    stage,
				Function: f,
			})
		}
	}
}

// bodyPass opens a lexical scope stack per function, binds parameters
// first, then resolves every identifier occurrence to the innermost
// matching binding, per spec §4.3 step 2. Member accesses and calls do
// not introduce bindings.
func (b *builder) bodyPass(ast *wgsl.Module) {
	for _, f := range ast.Functions {
		fnScope := newScope(nil)
		for _, p := range f.Params {
			id := b.newSymbol(SymbolParam, p.Name, p, f)
			fnScope.define(p.Name, id)
		}
		if f.Body != nil {
			b.resolveBlock(f.Body, fnScope, f)
		}
	}
}

func (b *builder) resolveBlock(block *wgsl.BlockStmt, parent *scope, fn *wgsl.FunctionDecl) {
	s := newScope(parent)
	for _, stmt := range block.Statements {
		b.resolveStmt(stmt, s, fn)
	}
}

//nolint:gocyclo,cyclop // exhaustive statement-kind switch mirrors wgsl/lower.go's statement lowering
func (b *builder) resolveStmt(stmt wgsl.Stmt, s *scope, fn *wgsl.FunctionDecl) {
	switch st := stmt.(type) {
	case *wgsl.VarDecl:
		if st.Init != nil {
			b.resolveExpr(st.Init, s, fn)
		}
		id := b.newSymbol(SymbolLocal, st.Name, st, fn)
		s.define(st.Name, id)
	case *wgsl.ConstDecl:
		if st.Init != nil {
			b.resolveExpr(st.Init, s, fn)
		}
		id := b.newSymbol(SymbolLocal, st.Name, st, fn)
		s.define(st.Name, id)
	case *wgsl.ReturnStmt:
		if st.Value != nil {
			b.resolveExpr(st.Value, s, fn)
		}
	case *wgsl.ExprStmt:
		if st.Expr != nil {
			b.resolveExpr(st.Expr, s, fn)
		}
	case *wgsl.AssignStmt:
		b.resolveExpr(st.Left, s, fn)
		if st.Right != nil {
			b.resolveExpr(st.Right, s, fn)
		}
	case *wgsl.IfStmt:
		b.resolveExpr(st.Condition, s, fn)
		b.resolveBlock(st.Body, s, fn)
		if st.Else != nil {
			b.resolveStmt(st.Else, s, fn)
		}
	case *wgsl.BlockStmt:
		b.resolveBlock(st, s, fn)
	case *wgsl.ForStmt:
		loopScope := newScope(s)
		if st.Init != nil {
			b.resolveStmt(st.Init, loopScope, fn)
		}
		if st.Condition != nil {
			b.resolveExpr(st.Condition, loopScope, fn)
		}
		if st.Update != nil {
			b.resolveStmt(st.Update, loopScope, fn)
		}
		b.resolveBlock(st.Body, loopScope, fn)
	case *wgsl.WhileStmt:
		b.resolveExpr(st.Condition, s, fn)
		b.resolveBlock(st.Body, s, fn)
	case *wgsl.LoopStmt:
		b.resolveBlock(st.Body, s, fn)
		if st.Continuing != nil {
			b.resolveBlock(st.Continuing, s, fn)
		}
	case *wgsl.SwitchStmt:
		b.resolveExpr(st.Selector, s, fn)
		for _, c := range st.Cases {
			for _, sel := range c.Selectors {
				b.resolveExpr(sel, s, fn)
			}
			if c.Body != nil {
				b.resolveBlock(c.Body, s, fn)
			}
		}
	case *wgsl.BreakStmt, *wgsl.ContinueStmt, *wgsl.DiscardStmt:
		// no identifiers to resolve
	default:
		b.log.WithField("stmt", fmt.Sprintf("%T", stmt)).Debug("resolver: unhandled statement kind, no identifiers resolved")
	}
}

//nolint:gocyclo,cyclop // exhaustive expression-kind switch mirrors wgsl/lower.go's expression lowering
func (b *builder) resolveExpr(expr wgsl.Expr, s *scope, fn *wgsl.FunctionDecl) {
	switch e := expr.(type) {
	case *wgsl.Ident:
		if id, ok := s.lookup(e.Name); ok {
			b.table.identSymbol[e] = id
			if b.table.Symbols[id].Kind == SymbolGlobal {
				b.recordGlobalUse(fn.Name, id)
			}
			return
		}
		if id, ok := b.table.byName[e.Name]; ok {
			b.table.identSymbol[e] = id
			b.recordGlobalUse(fn.Name, id)
			return
		}
		b.table.identSymbol[e] = UnresolvedSymbol
	case *wgsl.BinaryExpr:
		b.resolveExpr(e.Left, s, fn)
		b.resolveExpr(e.Right, s, fn)
	case *wgsl.UnaryExpr:
		b.resolveExpr(e.Operand, s, fn)
	case *wgsl.CallExpr:
		if e.Func != nil {
			if _, ok := s.lookup(e.Func.Name); !ok {
				if _, ok := b.table.byName[e.Func.Name]; ok {
					b.recordCall(fn.Name, e.Func.Name)
				}
			}
		}
		for _, a := range e.Args {
			b.resolveExpr(a, s, fn)
		}
	case *wgsl.IndexExpr:
		b.resolveExpr(e.Expr, s, fn)
		b.resolveExpr(e.Index, s, fn)
	case *wgsl.MemberExpr:
		// member accesses do not introduce bindings; only the base
		// expression carries resolvable identifiers.
		b.resolveExpr(e.Expr, s, fn)
	case *wgsl.ConstructExpr:
		for _, a := range e.Args {
			b.resolveExpr(a, s, fn)
		}
	case *wgsl.BitcastExpr:
		b.resolveExpr(e.Expr, s, fn)
	case *wgsl.Literal:
		// nothing to resolve
	default:
		b.log.WithField("expr", fmt.Sprintf("%T", expr)).Debug("resolver: unhandled expression kind, no identifiers resolved")
	}
}

func (b *builder) recordGlobalUse(fnName string, symID int) {
	if fnName == "" {
		return
	}
	if b.globalUses[fnName] == nil {
		b.globalUses[fnName] = make(map[int]struct{})
	}
	b.globalUses[fnName][symID] = struct{}{}
}

func (b *builder) recordCall(caller, callee string) {
	if b.callGraph[caller] == nil {
		b.callGraph[caller] = make(map[string]struct{})
	}
	b.callGraph[caller][callee] = struct{}{}
}

// finalizeEntryPoints computes, for each entry point, the transitive
// closure over the call graph and the union of binding-variable symbols
// referenced in any reachable function body (spec §4.3 "Transitive-use
// computation"), plus vertex input / fragment output slot extraction.
func (b *builder) finalizeEntryPoints() {
	for _, ep := range b.table.EntryPoints {
		reachable := b.reachableFunctions(ep.Name)
		used := make(map[int]struct{})
		for fnName := range reachable {
			for symID := range b.globalUses[fnName] {
				sym := b.table.Symbols[symID]
				if sym.Group != nil && sym.Binding != nil {
					used[symID] = struct{}{}
				}
			}
		}
		for id := range used {
			ep.UsedBindings = append(ep.UsedBindings, id)
		}

		if ep.Stage == StageVertex {
			ep.VertexInputs = b.vertexInputSlots(ep.Function)
		}
		if ep.Stage == StageFragment {
			ep.FragmentOutputs = b.fragmentOutputSlots(ep.Function)
		}
	}
}

func (b *builder) reachableFunctions(entry string) map[string]struct{} {
	visited := map[string]struct{}{entry: {}}
	queue := []string{entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for callee := range b.callGraph[cur] {
			if _, ok := visited[callee]; ok {
				continue
			}
			visited[callee] = struct{}{}
			queue = append(queue, callee)
		}
	}
	return visited
}

// vertexInputSlots inspects a vertex entry point's parameter list: for
// each parameter carrying @location(n), or whose type is a struct with
// @location(n)-decorated fields, it emits a slot.
func (b *builder) vertexInputSlots(fn *wgsl.FunctionDecl) []Slot {
	var slots []Slot
	for _, p := range fn.Params {
		if loc, ok := locationOf(p.Attributes); ok {
			slots = append(slots, slotFromType(p.Type, loc))
			continue
		}
		if named, ok := p.Type.(*wgsl.NamedType); ok {
			if sd, ok := b.table.structs[named.Name]; ok {
				slots = append(slots, b.structLocationSlots(sd)...)
			}
		}
	}
	return slots
}

// fragmentOutputSlots inspects a fragment entry point's return type for
// @location(n) attributes, keyed by location.
func (b *builder) fragmentOutputSlots(fn *wgsl.FunctionDecl) []Slot {
	if loc, ok := locationOf(fn.ReturnAttrs); ok {
		return []Slot{slotFromType(fn.ReturnType, loc)}
	}
	if named, ok := fn.ReturnType.(*wgsl.NamedType); ok {
		if sd, ok := b.table.structs[named.Name]; ok {
			return b.structLocationSlots(sd)
		}
	}
	return nil
}

func (b *builder) structLocationSlots(sd *wgsl.StructDecl) []Slot {
	var slots []Slot
	for _, m := range sd.Members {
		if loc, ok := locationOf(m.Attributes); ok {
			slots = append(slots, slotFromType(m.Type, loc))
		}
	}
	return slots
}

// locationOf, groupBindingAttrs and parseUintLiteral delegate to the
// shared wgsl-level attribute parsing so the resolver and the lowering
// pass can never disagree on @location/@group/@binding syntax.
func locationOf(attrs []wgsl.Attribute) (uint32, bool) {
	return wgsl.Location(attrs)
}

func groupBindingAttrs(attrs []wgsl.Attribute) (group, binding, minSize *uint32) {
	return wgsl.GroupBinding(attrs)
}

func parseUintLiteral(s string) uint32 {
	return wgsl.ParseUintLiteral(s)
}

// slotFromType derives a Slot's component count/numeric type/byte size
// from a WGSL scalar or vecN<scalar> type node.
func slotFromType(t wgsl.Type, loc uint32) Slot {
	named, ok := t.(*wgsl.NamedType)
	if !ok {
		return Slot{Location: loc, Components: 1, Type: NumericUnknown, ByteSize: 4}
	}

	components := uint32(1)
	scalarName := named.Name
	switch named.Name {
	case "vec2":
		components = 2
	case "vec3":
		components = 3
	case "vec4":
		components = 4
	}
	if components > 1 && len(named.TypeParams) > 0 {
		if inner, ok := named.TypeParams[0].(*wgsl.NamedType); ok {
			scalarName = inner.Name
		}
	}

	numeric := numericFromName(scalarName)
	return Slot{
		Location:   loc,
		Components: components,
		Type:       numeric,
		ByteSize:   components * numeric.byteSize(),
	}
}

func numericFromName(name string) NumericType {
	switch name {
	case "f32":
		return NumericF32
	case "i32":
		return NumericI32
	case "u32":
		return NumericU32
	case "f16":
		return NumericF16
	case "bool":
		return NumericBool
	default:
		return NumericUnknown
	}
}

// entryPointStage maps wgsl.StageKeyword's bare keyword onto the
// resolver's own Stage enum, keeping this package independent of the
// ir package's ShaderStage type.
func entryPointStage(attrs []wgsl.Attribute) Stage {
	switch wgsl.StageKeyword(attrs) {
	case "vertex":
		return StageVertex
	case "fragment":
		return StageFragment
	case "compute":
		return StageCompute
	}
	return StageUnknown
}
