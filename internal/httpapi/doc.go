// Package httpapi exposes the permalink engine over HTTP for the permalinkd
// service: records are created and updated through the engine, so their slugs
// are built on save, and looked up by identifier or by any slug they have held.
package httpapi
