package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"

	"trademcp/internal/schema"
)

// ToolDefinition converts a declared tool into the MCP tool definition
// advertised to clients.
func ToolDefinition(t *schema.Tool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(t.Description),
		mcp.WithReadOnlyHintAnnotation(t.ReadOnly),
		mcp.WithDestructiveHintAnnotation(t.Destructive),
	}
	for _, f := range t.Fields {
		opts = append(opts, fieldOption(f))
	}
	return mcp.NewTool(t.Name, opts...)
}

func fieldOption(f schema.Field) mcp.ToolOption {
	props := []mcp.PropertyOption{mcp.Description(describe(f))}
	if f.Required {
		props = append(props, mcp.Required())
	}

	switch f.Kind {
	case schema.String:
		if len(f.Enum) > 0 {
			props = append(props, mcp.Enum(f.Enum...))
		}
		if s, ok := f.Default.(string); ok {
			props = append(props, mcp.DefaultString(s))
		}
		return mcp.WithString(f.Name, props...)
	case schema.Number, schema.Integer:
		if n, ok := number(f.Default); ok {
			props = append(props, mcp.DefaultNumber(n))
		}
		return mcp.WithNumber(f.Name, props...)
	case schema.Boolean:
		if b, ok := f.Default.(bool); ok {
			props = append(props, mcp.DefaultBool(b))
		}
		return mcp.WithBoolean(f.Name, props...)
	default:
		props = append(props, mcp.Items(objectSchema(f.Items)))
		if f.MinItems > 0 {
			props = append(props, mcp.MinItems(f.MinItems))
		}
		if f.MaxItems > 0 {
			props = append(props, mcp.MaxItems(f.MaxItems))
		}
		return mcp.WithArray(f.Name, props...)
	}
}

// describe appends the whole-number constraint that the number property
// cannot express on its own.
func describe(f schema.Field) string {
	if f.Kind == schema.Integer {
		return f.Description + " Whole number."
	}
	return f.Description
}

// objectSchema renders the members of an array of objects as raw JSON
// Schema. Unknown member fields are rejected by the parser, so the schema
// says so too.
func objectSchema(fields []schema.Field) map[string]any {
	props := make(map[string]any, len(fields))
	var required []string
	for _, f := range fields {
		p := map[string]any{"type": string(f.Kind), "description": f.Description}
		if len(f.Enum) > 0 {
			p["enum"] = f.Enum
		}
		if f.Default != nil {
			p["default"] = f.Default
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
