// Package command routes extension host RPC commands to bridge-side
// handlers.
//
// Every call the extension host makes into the IDE arrives as a string
// command id plus an ordered argument list. The Registry binds each id to
// a handler method; the Dispatcher resolves the method's variants,
// selects one by argument count, coerces the arguments to the declared
// parameter kinds, and invokes it.
//
// # Dispatch
//
// Execute never lets a handler failure escape. Unknown ids, methods with
// no variants, handler errors, and handler panics are all logged and
// reported through the returned Result; the transport on the other side
// of the call sees a command that quietly produced nothing. One broken
// command must not take the host connection down with it.
//
//  1. The id is remapped through a fixed legacy-alias table.
//  2. The registration is looked up; a miss is logged and dropped.
//  3. A variant with a parameter count equal to the argument count wins;
//     with no exact match the first variant runs anyway. Dispatch prefers
//     running something over rejecting the call.
//  4. Each argument is coerced to its declared Kind; missing trailing
//     arguments become "" for string parameters and nil for the rest.
//  5. Synchronous variants run inline under panic recovery. Asynchronous
//     variants are scheduled on their own goroutine and completion is
//     delivered to the dispatcher's OnComplete callback.
//
// # Variants
//
// A handler declares its methods as explicit Variant tables rather than
// being probed reflectively: each variant states its parameter kinds up
// front, so the coercion applied to a call is visible at the registration
// site.
//
//	h := command.HandlerMap{
//	    "open": {{
//	        Params: []command.Kind{command.KindString, command.KindInt},
//	        Fn: func(ctx context.Context, args []any) (any, error) {
//	            return openDiff(args[0].(string), args[1].(int))
//	        },
//	    }},
//	}
//	registry.Register("diff.open", "open", h, "void")
//
// A variant whose sole parameter is KindList receives the entire argument
// list as one value, uncoerced.
package command
