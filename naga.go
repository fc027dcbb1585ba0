// Package naga provides a Pure Go shader compiler.
//
// naga compiles WGSL (WebGPU Shading Language) source code to SPIR-V, the
// binary format for Vulkan. SPIR-V is the only output format.
//
// The package provides a simple, high-level API for shader compilation as well as
// lower-level access to individual compilation stages:
// source text -> Parse -> AST -> resolver.Build -> Resolver table -> Lower -> SSIR -> back-end.
//
// Example usage (SPIR-V):
//
//	source := `
//	@vertex
//	fn main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
//	    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
//	}
//	`
//	spirv, err := naga.Compile(source)
//	if err != nil {
//	    log.Fatal(err)
//	}
package naga

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/shaderkit/ssirc/ir"
	"github.com/shaderkit/ssirc/resolver"
	"github.com/shaderkit/ssirc/spirv"
	"github.com/shaderkit/ssirc/wgsl"
)

// CompileOptions configures shader compilation.
type CompileOptions struct {
	// SPIRVVersion is the target SPIR-V version (default: 1.3)
	SPIRVVersion spirv.Version

	// Debug enables debug info in output (OpName, OpLine, etc.)
	Debug bool

	// Validate enables IR validation before code generation
	Validate bool

	// Logger receives pipeline diagnostics (stage entry/exit, resolver
	// findings, recoverable warnings). Defaults to logrus.StandardLogger()
	// when nil.
	Logger *logrus.Logger
}

// DefaultOptions returns sensible default options.
func DefaultOptions() CompileOptions {
	return CompileOptions{
		SPIRVVersion: spirv.Version1_3,
		Debug:        false,
		Validate:     true,
		Logger:       logrus.StandardLogger(),
	}
}

func (o CompileOptions) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

// CompileResult carries the compiled binary plus the resolver table
// computed along the way, so callers can inspect entry points, vertex
// input slots and transitively-used bindings without re-running the
// front end.
type CompileResult struct {
	SPIRV    []byte
	Resolver *resolver.Table
}

// Compile compiles WGSL source code to SPIR-V binary using default options.
//
// This is the simplest way to compile a shader. For more control, use CompileWithOptions
// or the individual Parse/Lower/Generate functions.
func Compile(source string) ([]byte, error) {
	return CompileWithOptions(source, DefaultOptions())
}

// CompileWithOptions compiles WGSL source code to SPIR-V binary with custom options.
//
// The compilation pipeline is:
//  1. Parse WGSL source to AST
//  2. Build the resolver's symbol/entry-point tables over the AST (for
//     diagnostics; see CompileWithResolver to keep the tables)
//  3. Lower AST to IR (intermediate representation)
//  4. Validate IR (if enabled)
//  5. Generate SPIR-V binary
func CompileWithOptions(source string, opts CompileOptions) ([]byte, error) {
	result, err := CompileWithResolver(source, opts)
	if err != nil {
		return nil, err
	}
	return result.SPIRV, nil
}

// CompileWithResolver runs the same pipeline as CompileWithOptions but
// additionally returns the resolver table built over the AST, so callers
// (the CLI, tooling) can inspect entry points, vertex input slots and
// transitively-used bindings without re-running the front end.
func CompileWithResolver(source string, opts CompileOptions) (*CompileResult, error) {
	log := opts.logger()

	ast, err := Parse(source)
	if err != nil {
		return nil, errors.Wrap(err, "parse error")
	}
	log.WithField("structs", len(ast.Structs)).WithField("functions", len(ast.Functions)).Debug("naga: parsed WGSL module")

	table, err := resolver.BuildWithLogger(ast, log)
	if err != nil {
		return nil, errors.Wrap(err, "resolver error")
	}
	for _, ep := range table.EntryPoints {
		log.WithFields(logrus.Fields{
			"entry_point":   ep.Name,
			"stage":         ep.Stage.String(),
			"used_bindings": len(ep.UsedBindings),
			"vertex_inputs": len(ep.VertexInputs),
			"frag_outputs":  len(ep.FragmentOutputs),
		}).Debug("naga: resolved entry point")
	}

	module, err := LowerWithSource(ast, source)
	if err != nil {
		return nil, errors.Wrap(err, "lowering error")
	}

	if opts.Validate {
		validationErrors, err := Validate(module)
		if err != nil {
			return nil, errors.Wrap(err, "validation error")
		}
		if len(validationErrors) > 0 {
			log.WithField("count", len(validationErrors)).Error("naga: validation failed")
			return nil, errors.Wrap(&validationErrors[0], "validation failed")
		}
	}

	spirvOpts := spirv.Options{
		Version:         opts.SPIRVVersion,
		Debug:           opts.Debug,
		OriginUpperLeft: true,
	}
	spirvBytes, err := GenerateSPIRV(module, spirvOpts)
	if err != nil {
		return nil, errors.Wrap(err, "SPIR-V generation error")
	}

	return &CompileResult{SPIRV: spirvBytes, Resolver: table}, nil
}

// Parse parses WGSL source code to AST (Abstract Syntax Tree).
//
// This is the first stage of compilation. The AST represents the syntactic
// structure of the shader but does not include semantic information like types.
func Parse(source string) (*wgsl.Module, error) {
	// Tokenize
	lexer := wgsl.NewLexer(source)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, fmt.Errorf("tokenization error: %w", err)
	}

	// Parse to AST
	parser := wgsl.NewParser(tokens)
	module, err := parser.Parse()
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return module, nil
}

// BuildResolver runs the name-resolution stage over a parsed AST,
// producing the symbol/entry-point tables described in spec §3.2.
func BuildResolver(ast *wgsl.Module) (*resolver.Table, error) {
	return resolver.Build(ast)
}

// Lower converts WGSL AST to IR (Intermediate Representation).
//
// The IR is a lower-level representation that includes type information,
// resolved identifiers, and a simpler structure suitable for code generation.
func Lower(ast *wgsl.Module) (*ir.Module, error) {
	return LowerWithSource(ast, "")
}

// LowerWithSource converts WGSL AST to IR, keeping source for error messages.
//
// When source is provided, errors will include line:column information
// and can show source context using ErrorList.FormatAll().
func LowerWithSource(ast *wgsl.Module, source string) (*ir.Module, error) {
	module, err := wgsl.LowerWithSource(ast, source)
	if err != nil {
		return nil, err
	}
	return module, nil
}

// Validate validates an IR module for correctness.
//
// Validation checks include:
//   - Type consistency
//   - Reference validity (all handles point to valid objects)
//   - Control flow validity (structured control flow rules)
//   - Binding uniqueness (no duplicate @group/@binding)
//
// Returns a slice of validation errors. If the slice is empty, validation passed.
func Validate(module *ir.Module) ([]ir.ValidationError, error) {
	return ir.Validate(module)
}

// GenerateSPIRV generates SPIR-V binary from IR module.
//
// This is the final stage of compilation. The output is a binary blob
// that can be directly consumed by Vulkan or other SPIR-V consumers.
func GenerateSPIRV(module *ir.Module, opts spirv.Options) ([]byte, error) {
	backend := spirv.NewBackend(opts)
	spirvBytes, err := backend.Compile(module)
	if err != nil {
		return nil, fmt.Errorf("SPIR-V generation error: %w", err)
	}
	return spirvBytes, nil
}
