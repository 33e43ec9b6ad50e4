// Package simplenews keeps a news catalog of articles and carousel entries
// consistent with the media they reference.
//
// Records live in a Repository (memory, Postgres, PostgREST or SQLite) and
// media in a BlobStore (memory, filesystem or S3) behind a MediaStore. The
// Pipeline performs the multi-step mutations across the two stores, the
// Catalog caches full snapshots for search and layout, and the Counter
// increments view and like counts. Portal ties them together.
//
// Consistency
//
// Creates upload media before inserting the record and delete the upload if
// the insert fails. Deletes remove the record before its media. Either
// failure window can orphan an asset but never leaves a record referencing
// media that does not exist. The scan package removes orphans.
package simplenews
