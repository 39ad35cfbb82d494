// Package instance implements the record objects handed to callers.
//
// An Immutable wraps a shared row snapshot and resolves relations through
// lazily loaded caches (One and Many). Each cache fetches from the target
// table's TableCache at most once per load, subscribes to that table's change
// notifications while loaded and drops its value when the table changes.
// Table caches hold relation caches only weakly: a cache that is no longer
// reachable from its instance unsubscribes once it is collected, and Release
// unsubscribes deterministically.
//
// A Mutable layers writes over a baseline snapshot:
//
//	user, _ := users.Row(ctx, identity.FromValue(1), provider.ReadOnly())
//	edit := user.Edit()
//	_ = edit.SetByName("name", "ann")
//	edit.Changes() // [{users.name ann}]
//	user.GetByName("name") // unchanged
//
// The contracts a storage layer implements (Provider, Scope, TableCache) live
// here too, so the package has no dependency on any database.
package instance
