// Package http implements the JSON API: record-level diffs and historical
// traces over tables sent in the request body, plus health and metrics.
//
// # Endpoints
//
//	POST /api/v1/diff   two tables, key columns, optional columns to check
//	POST /api/v1/trace  one or more tables, key columns and the value column
//	GET  /healthz       liveness and build information
//	GET  /metrics       Prometheus exposition
//
// A table is either CSV text with a header row or explicit columns and rows:
//
//	{"name": "jan.xlsx", "csv": "id,amount\n1,10\n"}
//	{"name": "feb.xlsx", "columns": ["id", "amount"], "rows": [["1", "12"]]}
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details. Missing key columns and
// duplicate keys are schema errors and answer 422; malformed bodies and
// failed validation answer 400:
//
//	{
//	    "type": "/errors/table/schema",
//	    "title": "Unprocessable Entity",
//	    "status": 422,
//	    "detail": "version 2 is missing required columns: id",
//	    "instance": "/api/v1/diff"
//	}
package http
