package core

// Version is the version of the oracle code.
const Version = "0.1.0"

// CacheVersion is the schema version of the document cache.  Bump
// the minor or major number when cached text would be extracted
// differently.
const CacheVersion = "1.0.0"
