// Package api defines the JSON wire types of the per-node data API.
//
// Every node exposes the same four endpoints:
//
//	POST   /data/create      - store partial records
//	POST   /data/read        - list partial records by filter
//	PUT    /data/update      - patch one record's fields
//	DELETE /data/delete/{id} - remove one record
//
// Requests carry a Bearer token audience-bound to the target node.
package api

import "github.com/gabrielantonyxaviour/jedi-vault/interfaces"

// CreateRequest stores one or more partial records in a schema partition.
type CreateRequest struct {
	Schema interfaces.SchemaID        `json:"schema"`
	Data   []interfaces.PartialRecord `json:"data"`
}

// CreateResponse lists the identifiers of the stored records.
type CreateResponse struct {
	CreatedIDs []interfaces.RecordID `json:"created_ids"`
}

// ReadRequest lists partial records matching an exact-match filter over
// plaintext fields. A nil filter matches everything in the schema.
type ReadRequest struct {
	Schema interfaces.SchemaID `json:"schema"`
	Filter interfaces.Filter   `json:"filter,omitempty"`
}

// ReadResponse returns the matching partial records, plaintext fields
// verbatim and shares as {"%share": <string>}.
type ReadResponse struct {
	Records []interfaces.PartialRecord `json:"records"`
}

// UpdateRequest patches the named fields of one record.
type UpdateRequest struct {
	Schema interfaces.SchemaID         `json:"schema"`
	ID     interfaces.RecordID         `json:"id"`
	Update map[string]interfaces.Field `json:"update"`
}

// UpdateResponse reports whether the record existed.
type UpdateResponse struct {
	Updated bool `json:"updated"`
}

// DeleteResponse reports whether a record was removed. Deleting an absent
// record is a success with Deleted == false.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
