package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaderkit/ssirc/resolver"
	"github.com/shaderkit/ssirc/wgsl"
)

func parse(t *testing.T, source string) *wgsl.Module {
	t.Helper()
	lexer := wgsl.NewLexer(source)
	tokens, err := lexer.Tokenize()
	require.NoError(t, err)
	p := wgsl.NewParser(tokens)
	mod, err := p.Parse()
	require.NoError(t, err)
	return mod
}

func TestBuildComputeDoubler(t *testing.T) {
	source := `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;
@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
  data[gid.x] = data[gid.x] * 2.0;
}`
	mod := parse(t, source)
	table, err := resolver.Build(mod)
	require.NoError(t, err)

	require.Len(t, table.EntryPoints, 1)
	ep := table.EntryPoints[0]
	assert.Equal(t, "main", ep.Name)
	assert.Equal(t, resolver.StageCompute, ep.Stage)
	assert.Len(t, ep.UsedBindings, 1)

	dataSym := table.Symbol(ep.UsedBindings[0])
	require.NotNil(t, dataSym)
	assert.Equal(t, "data", dataSym.Name)
	require.NotNil(t, dataSym.Group)
	require.NotNil(t, dataSym.Binding)
	assert.EqualValues(t, 0, *dataSym.Group)
	assert.EqualValues(t, 0, *dataSym.Binding)
}

func TestTransitiveUniformUsage(t *testing.T) {
	source := `
@group(0) @binding(0) var<uniform> U: f32;

fn useU() -> f32 {
  return U;
}

fn middle() -> f32 {
  return useU();
}

@vertex
fn main_vs(@location(0) pos: vec3<f32>) -> @builtin(position) vec4<f32> {
  let x = middle();
  return vec4<f32>(pos, x);
}`
	mod := parse(t, source)
	table, err := resolver.Build(mod)
	require.NoError(t, err)

	require.Len(t, table.EntryPoints, 1)
	ep := table.EntryPoints[0]
	require.Len(t, ep.UsedBindings, 1)
	sym := table.Symbol(ep.UsedBindings[0])
	assert.Equal(t, "U", sym.Name)
}

func TestVertexInputSlotsFromParams(t *testing.T) {
	source := `
@vertex
fn main(@location(0) pos: vec3<f32>, @location(1) uv: vec2<f32>) -> @builtin(position) vec4<f32> {
  return vec4<f32>(pos, 1.0);
}`
	mod := parse(t, source)
	table, err := resolver.Build(mod)
	require.NoError(t, err)

	ep := table.EntryPoints[0]
	require.Len(t, ep.VertexInputs, 2)
	assert.EqualValues(t, 0, ep.VertexInputs[0].Location)
	assert.EqualValues(t, 3, ep.VertexInputs[0].Components)
	assert.Equal(t, resolver.NumericF32, ep.VertexInputs[0].Type)
	assert.EqualValues(t, 12, ep.VertexInputs[0].ByteSize)

	assert.EqualValues(t, 1, ep.VertexInputs[1].Location)
	assert.EqualValues(t, 2, ep.VertexInputs[1].Components)
	assert.EqualValues(t, 8, ep.VertexInputs[1].ByteSize)
}

func TestVertexInputSlotsFromStructFields(t *testing.T) {
	source := `
struct VertexInput {
  @location(0) pos: vec3<f32>,
  @location(1) uv: vec2<f32>,
}

@vertex
fn main(input: VertexInput) -> @builtin(position) vec4<f32> {
  return vec4<f32>(input.pos, 1.0);
}`
	mod := parse(t, source)
	table, err := resolver.Build(mod)
	require.NoError(t, err)

	ep := table.EntryPoints[0]
	require.Len(t, ep.VertexInputs, 2)
	assert.EqualValues(t, 1, ep.VertexInputs[1].Location)
}

func TestFragmentOutputSlot(t *testing.T) {
	source := `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
  return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}`
	mod := parse(t, source)
	table, err := resolver.Build(mod)
	require.NoError(t, err)

	ep := table.EntryPoints[0]
	require.Len(t, ep.FragmentOutputs, 1)
	assert.EqualValues(t, 0, ep.FragmentOutputs[0].Location)
	assert.EqualValues(t, 4, ep.FragmentOutputs[0].Components)
}

func TestUnresolvedIdentifierSentinel(t *testing.T) {
	source := `
fn f() -> f32 {
  return doesNotExist;
}`
	mod := parse(t, source)
	table, err := resolver.Build(mod)
	require.NoError(t, err)

	found := false
	for id, symID := range allIdentSymbols(table) {
		if id.Name == "doesNotExist" {
			found = true
			assert.Equal(t, resolver.UnresolvedSymbol, symID)
		}
	}
	assert.True(t, found, "expected to observe the unresolved identifier")
}

// allIdentSymbols walks the single function in the module and returns a
// map from the return-statement identifier to its resolved symbol id,
// using only exported surface (IdentSymbol) so this test exercises the
// same path a lowering pass would.
func allIdentSymbols(table *resolver.Table) map[*wgsl.Ident]int {
	out := make(map[*wgsl.Ident]int)
	for _, sym := range table.Symbols {
		fn, ok := sym.Decl.(*wgsl.FunctionDecl)
		if !ok || fn.Body == nil {
			continue
		}
		for _, stmt := range fn.Body.Statements {
			ret, ok := stmt.(*wgsl.ReturnStmt)
			if !ok {
				continue
			}
			if id, ok := ret.Value.(*wgsl.Ident); ok {
				out[id] = table.IdentSymbol(id)
			}
		}
	}
	return out
}

func TestEmptySourceProducesNoEntryPoints(t *testing.T) {
	mod := parse(t, "")
	table, err := resolver.Build(mod)
	require.NoError(t, err)
	assert.Empty(t, table.EntryPoints)
	assert.Empty(t, table.Symbols)
}

func TestBuildRejectsNilModule(t *testing.T) {
	_, err := resolver.Build(nil)
	require.Error(t, err)
}
