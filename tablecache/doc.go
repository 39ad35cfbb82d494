// Package tablecache stores rows of a bun database behind identity-mapped,
// change-aware table caches.
//
// A Provider holds one Table per schema table. Reads through the read-only
// scope share sturdyc stores, so every identity maps to one *instance.Immutable
// until the table changes. Transactions get a TxScope with a private identity
// map, and relation caches bound to a transaction are notified of its own
// writes right away. When it finishes, every table written through it is
// invalidated and its subscribers, the relation caches of loaded instances,
// are notified. Instances dropped from a store are released.
//
//	p, _ := tablecache.New(db, s, tablecache.WithLogger(logger))
//	users := p.Table("users")
//	u, _ := users.Row(ctx, identity.FromValue(1), p.ReadOnly())
//
//	err := p.Write(ctx, func(tx *tablecache.TxScope) error {
//		edit := u.Edit()
//		if err := edit.SetByName("name", "ann"); err != nil {
//			return err
//		}
//		_, err := p.Save(ctx, tx, edit)
//		return err
//	})
package tablecache
