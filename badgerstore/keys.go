package badgerstore

// Key scheme: one key per record, "<collection>\x00<id>". The separator
// cannot appear in collection names or generated identities, so prefixes of
// distinct collections never collide.

const keySep = 0x00

func collectionPrefix(collection string) []byte {
	prefix := make([]byte, 0, len(collection)+1)
	prefix = append(prefix, collection...)
	return append(prefix, keySep)
}

func recordKey(collection, id string) []byte {
	key := make([]byte, 0, len(collection)+len(id)+1)
	key = append(key, collection...)
	key = append(key, keySep)
	return append(key, id...)
}
