// Package reqconf defines the layered request configuration consumed by
// the request pipeline.
//
// A configuration layer is either a concrete [Init] or a [Deferred]
// transform. Layers are folded with [Merge]:
//
//	init, err := reqconf.Merge(reqconf.Init{
//		Headers: reqconf.HeadersFromMap(map[string]string{"Accept": "application/json"}),
//	}, reqconf.Init{
//		Headers: reqconf.HeadersFromMap(map[string]string{"X-Trace": "on"}),
//	})
//	// init.Headers holds both Accept and X-Trace.
//
// Concrete layers union their header sets, with the later layer winning on
// a case-insensitive name collision. A Deferred layer receives the
// configuration built so far and its result is used verbatim, so it can
// drop or rewrite anything including headers.
package reqconf
