// Package tree loads a folder hierarchy on demand and reveals a known path in it.
//
// A Loader fetches the children of a node the first time the node is opened.
// Given an ancestor chain (root-to-target node IDs), ExpandPath opens every
// rendered node on the chain each time a node finishes opening, and resolves
// its Completion exactly once when the last ID of the chain is rendered.
//
// Basic usage:
//
//	loader := tree.NewLoader(client)
//	done, err := loader.ExpandPath(tree.AncestorChain{"library-1", "folder-4", "folder-9"})
//	if err != nil {
//		return err
//	}
//	if err := loader.LoadRoot(ctx, "/ajax/folders"); err != nil {
//		return err
//	}
//	res, err := done.Wait(ctx)
//	if err != nil {
//		return err // stalled: a fetch failed or the path does not exist
//	}
//	return loader.SelectTarget(res)
//
// All Loader state is guarded by one mutex. Fetch results and node-opened
// events are applied in delivery order; path walking never recurses.
package tree
