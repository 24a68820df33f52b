// Package engine opens a byte-keyed obtree database from configuration.
//
// # Overview
//
// DB wraps a btree.Tree[[]byte, []byte] over the backend selected by
// config.StorageConfig and owns its lifecycle:
//
//	db, err := engine.Open(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, _, err := db.Put([]byte("k"), []byte("v")); err != nil {
//	    return err
//	}
//	return db.Flush()
//
// Keys and values are copied on the way in and out, so callers may reuse
// their buffers.
package engine
