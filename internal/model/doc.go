// Package model defines the catalog data structures shared by the rest of
// canciones.
//
// # Song
//
// Song is one catalog record. Records read from the repository go through
// Normalize before they are shown or played:
//
//	song, ok := model.Normalize(raw, resolver)
//	if !ok {
//	    // no usable audio file, drop it
//	}
//
// # Catalog
//
// Catalog is the {"songs": [...]} container used by both the index file and
// the songs manifest. Upsert implements the insert-or-replace rule used when
// publishing: entries colliding by file or id are removed and the new record
// is prepended.
//
// # Queries
//
// Query, Filter and Paginate implement the gallery search, the genre and
// model filters, and the 24-per-page pagination.
package model
