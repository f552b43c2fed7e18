// Package template holds pure transformations over extracted templates.
package template

import (
	"log"
	"strconv"
	"strings"

	"docfill/internal/domain"
)

type occurrence struct {
	newKey     string
	instanceID string
	chunk      int
	hasChunk   bool
}

// Deduplicate renames colliding placeholder keys so each key is unique.
//
// The first occurrence of a key is kept; the n-th occurrence becomes "key_n".
// Collisions are counted per exact key string, so "a_2" colliding again becomes "a_2_2".
// Raw tokens and the content nodes produced by a renamed occurrence are rewritten to
// match. Nodes are tied to their occurrence by instance ID, then chunk index, then by
// ordinal position among nodes sharing the key. The input is not modified.
func Deduplicate(t domain.Template) domain.Template {
	out := t.Clone()
	tally := make(map[string]int, len(out.Placeholders))
	byKey := make(map[string][]occurrence, len(out.Placeholders))

	for i := range out.Placeholders {
		p := &out.Placeholders[i]
		oldKey := p.Key
		tally[oldKey]++
		n := tally[oldKey]

		occ := occurrence{newKey: oldKey, instanceID: p.InstanceID}
		if p.Context != nil {
			occ.chunk, occ.hasChunk = p.Context.ChunkIndex, true
		}
		if n > 1 {
			occ.newKey = oldKey + "_" + strconv.Itoa(n)
			p.Key = occ.newKey
			p.Raw = RenameRaw(p.Raw, oldKey, occ.newKey)
		}
		byKey[oldKey] = append(byKey[oldKey], occ)
	}
	if dup := DuplicateKeys(out); len(dup) > 0 {
		log.Printf("template.Deduplicate: keys still collide after renaming: %v", dup)
	}

	ordinal := make(map[string]int)
	perChunk := make(map[string]int)
	for i := range out.ContentNodes {
		node := &out.ContentNodes[i]
		switch node.Type {
		case domain.NodeTypeText:
			continue
		case domain.NodeTypePlaceholder:
		default:
			continue
		}

		list := byKey[node.Key]
		oldKey := node.Key
		pos := ordinal[oldKey]
		ordinal[oldKey]++
		if len(list) < 2 {
			continue
		}

		target := matchOccurrence(list, node, pos, perChunk)
		if target.newKey == oldKey {
			continue
		}
		node.Key = target.newKey
		node.Raw = RenameRaw(node.Raw, oldKey, target.newKey)
	}
	return out
}

// DuplicateKeys lists keys held by more than one placeholder, in first-seen order.
// A model-supplied key that equals a generated suffix (a, a, a_2) is left colliding.
func DuplicateKeys(t domain.Template) []string {
	count := make(map[string]int, len(t.Placeholders))
	var dup []string
	for _, p := range t.Placeholders {
		count[p.Key]++
		if count[p.Key] == 2 {
			dup = append(dup, p.Key)
		}
	}
	return dup
}

func matchOccurrence(list []occurrence, node *domain.ContentNode, pos int, perChunk map[string]int) occurrence {
	if node.InstanceID != "" {
		for _, o := range list {
			if o.instanceID == node.InstanceID {
				return o
			}
		}
	}
	if node.Context != nil {
		var inChunk []occurrence
		for _, o := range list {
			if o.hasChunk && o.chunk == node.Context.ChunkIndex {
				inChunk = append(inChunk, o)
			}
		}
		if len(inChunk) > 0 {
			counterKey := node.Key + "\x00" + strconv.Itoa(node.Context.ChunkIndex)
			idx := perChunk[counterKey]
			perChunk[counterKey]++
			if idx >= len(inChunk) {
				idx = len(inChunk) - 1
			}
			return inChunk[idx]
		}
	}
	if pos >= len(list) {
		pos = len(list) - 1
	}
	return list[pos]
}

// RenameRaw rewrites a raw token so it reflects newKey, where newKey extends oldKey
// with a suffix. An embedded key keeps its casing and the suffix is appended to it;
// a key written with spaces gets a space-separated suffix. Otherwise the suffix is
// inserted before the closing bracket run.
func RenameRaw(raw, oldKey, newKey string) string {
	if raw == "" || oldKey == "" || oldKey == newKey {
		return raw
	}
	suffix := strings.TrimPrefix(newKey, oldKey)
	if suffix == newKey {
		suffix = "_" + newKey
	}

	if idx := indexFold(raw, oldKey); idx >= 0 {
		end := idx + len(oldKey)
		return raw[:end] + suffix + raw[end:]
	}
	spaced := strings.ReplaceAll(oldKey, "_", " ")
	if spaced != oldKey {
		if idx := indexFold(raw, spaced); idx >= 0 {
			end := idx + len(spaced)
			return raw[:end] + strings.ReplaceAll(suffix, "_", " ") + raw[end:]
		}
	}

	cut := len(raw)
	for cut > 0 && strings.ContainsRune("]})>", rune(raw[cut-1])) {
		cut--
	}
	return raw[:cut] + suffix + raw[cut:]
}

func indexFold(s, sub string) int {
	lower := strings.ToLower(s)
	if len(lower) != len(s) {
		return -1
	}
	return strings.Index(lower, strings.ToLower(sub))
}
