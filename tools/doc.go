// Package tools implements the fixed catalogue of typed operations the agent
// may invoke.
//
// The Registry is an explicit table from tool name to input schema and
// handler, built once at startup. Invoke validates arguments against the
// tool's JSON Schema before running the handler. Expected failures such as an
// unknown document id come back as structured core.ToolResult failures so the
// agent can show them to the model. Only infrastructure failures, such as a
// closed store, are returned as Go errors.
package tools
