package bptree

import (
	"fmt"
	"io"
	"strings"

	"bptreedb/storage/guard"
	"bptreedb/storage/page"
)

// Fprint writes a human-readable, indented dump of the tree's structure to
// w: one line per node, breadth-first, showing its page id, size and keys
// (and, for leaves, the next leaf's page id). Child page ids are not printed;
// children appear on their own lines one indent level deeper.
func (t *BTree[K]) Fprint(w io.Writer) error {
	rootID, err := t.GetRootPageID()
	if err != nil {
		return err
	}
	if rootID == page.InvalidID {
		fmt.Fprintln(w, "(empty tree)")
		return nil
	}
	type queued struct {
		id    uint32
		depth int
	}
	queue := []queued{{rootID, 0}}
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		g, err := guard.FetchRead(t.cache, q.id, page.TypeInternal)
		if err != nil {
			return wrapCacheErr("fetch", q.id, err)
		}
		data := g.Data()
		size := nodeSize(data)
		indent := strings.Repeat("  ", q.depth)
		if pageKind(data) == page.TypeLeaf {
			keys := make([]string, size)
			for i := 0; i < size; i++ {
				keys[i] = fmt.Sprintf("%v", t.keyAt(data, i))
			}
			fmt.Fprintf(w, "%sleaf[%d] size=%d next=%d keys=[%s]\n", indent, q.id, size, leafNextPageID(data), strings.Join(keys, " "))
		} else {
			keys := make([]string, 0, size-1)
			for i := 1; i < size; i++ {
				keys = append(keys, fmt.Sprintf("%v", t.keyAt(data, i)))
			}
			fmt.Fprintf(w, "%sinternal[%d] size=%d keys=[%s]\n", indent, q.id, size, strings.Join(keys, " "))
			for i := 0; i < size; i++ {
				queue = append(queue, queued{t.childAt(data, i), q.depth + 1})
			}
		}
		g.Drop()
	}
	return nil
}

// Sprint is Fprint rendered to a string, for tests and logging.
func (t *BTree[K]) Sprint() (string, error) {
	var sb strings.Builder
	if err := t.Fprint(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteDot writes a Graphviz digraph of the tree's current structure to w:
// one node per page, solid edges for child pointers, and a dashed edge
// between each leaf and the one its next_page_id points to — a rendered
// tree shape is far easier to eyeball than a text dump once node counts
// grow, and the dashed chain makes the leaf-level linked list visible
// alongside the tree shape itself.
func (t *BTree[K]) WriteDot(w io.Writer) error {
	rootID, err := t.GetRootPageID()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "digraph bptree {")
	fmt.Fprintln(w, "  node [shape=record];")
	if rootID == page.InvalidID {
		fmt.Fprintln(w, "}")
		return nil
	}
	queue := []uint32{rootID}
	visited := map[uint32]bool{}
	var leafChain []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		g, err := guard.FetchRead(t.cache, id, page.TypeInternal)
		if err != nil {
			return wrapCacheErr("fetch", id, err)
		}
		data := g.Data()
		size := nodeSize(data)
		if pageKind(data) == page.TypeLeaf {
			fields := make([]string, size)
			for i := 0; i < size; i++ {
				fields[i] = fmt.Sprintf("%v", t.keyAt(data, i))
			}
			fmt.Fprintf(w, "  p%d [label=\"leaf %d|{%s}\"];\n", id, id, strings.Join(fields, "|"))
			if next := leafNextPageID(data); next != page.InvalidID {
				leafChain = append(leafChain, fmt.Sprintf("  p%d -> p%d [style=dashed, constraint=false];\n", id, next))
			}
		} else {
			fields := make([]string, size)
			fields[0] = "<c0>"
			for i := 1; i < size; i++ {
				fields[i] = fmt.Sprintf("%v|<c%d>", t.keyAt(data, i), i)
			}
			fmt.Fprintf(w, "  p%d [label=\"internal %d|{%s}\"];\n", id, id, strings.Join(fields, "|"))
			for i := 0; i < size; i++ {
				childID := t.childAt(data, i)
				fmt.Fprintf(w, "  p%d:c%d -> p%d;\n", id, i, childID)
				queue = append(queue, childID)
			}
		}
		g.Drop()
	}
	for _, edge := range leafChain {
		fmt.Fprint(w, edge)
	}
	fmt.Fprintln(w, "}")
	return nil
}
