// Package iac implements the infrastructure-as-code extractor:
// Terraform/HCL resource and variable declarations (SPEC_FULL §3
// expansion), gated by the Framework Detector on Signals.Terraform.
// Unlike the other language packages this one does not use tree-sitter
// — HCL's own parser (hashicorp/hcl/v2) already produces a typed
// body/block structure, which is a better fit than a generic grammar,
// grounded on ariga-atlas's schema/resource modeling style for
// resource attribute access via gocty.
package iac

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/facts"
)

// Extract parses an HCL file and emits iac_resources/iac_variables
// rows. content is the raw file bytes; fi.Path is used only for HCL
// parser diagnostics, never written into rows (the Normalizer injects
// "file").
func Extract(fi extract.FileInfo, content []byte) (extract.Output, error) {
	out := make(extract.Output)

	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(content, fi.Path)
	if diags.HasErrors() || f == nil {
		// No rows and no error: the pipeline records no ParseFailure
		// for a Terraform file that fails to parse.
		return out, nil
	}

	extractBlocks(f.Body, out)
	return out, nil
}

var resourceSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "resource", LabelNames: []string{"type", "name"}},
		{Type: "variable", LabelNames: []string{"name"}},
		{Type: "module", LabelNames: []string{"name"}},
	},
}

var variableBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "default"}},
}

func extractBlocks(body hcl.Body, out extract.Output) {
	content, _, _ := body.PartialContent(resourceSchema)
	if content == nil {
		return
	}

	var resources, variables []extract.Row
	for _, block := range content.Blocks {
		line := block.DefRange.Start.Line
		switch block.Type {
		case "resource":
			resources = append(resources, extract.Row{
				"line": line, "resource_type": block.Labels[0], "resource_name": block.Labels[1],
			})
		case "variable":
			name := block.Labels[0]
			defVal := ""
			if vb, _, _ := block.Body.PartialContent(variableBodySchema); vb != nil {
				if attr, ok := vb.Attributes["default"]; ok {
					val, diags := attr.Expr.Value(nil)
					if !diags.HasErrors() {
						var s string
						if err := gocty.FromCtyValue(val, &s); err == nil {
							defVal = s
						}
					}
				}
			}
			variables = append(variables, extract.Row{
				"line": line, "var_name": name, "default_value": defVal,
			})
		}
	}

	out[facts.TableIacResources] = resources
	out[facts.TableIacVariables] = variables
}
