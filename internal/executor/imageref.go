package executor

import "strings"

// normalizeImageRef splits ref into repository and tag the way the original
// docker.utils.parse_repository_tag fallback does: find the last "/" and the
// last ":"; if the colon appears after the slash, the suffix is the tag.
// Returns "repo:tag", defaulting the tag to "latest".
func normalizeImageRef(ref string) string {
	slash := strings.LastIndex(ref, "/")
	colon := strings.LastIndex(ref, ":")
	if colon > slash {
		return ref[:colon] + ":" + ref[colon+1:]
	}
	return ref + ":latest"
}

// splitImageRef returns the repository and tag components separately.
func splitImageRef(ref string) (repo, tag string) {
	slash := strings.LastIndex(ref, "/")
	colon := strings.LastIndex(ref, ":")
	if colon > slash {
		return ref[:colon], ref[colon+1:]
	}
	return ref, "latest"
}
