// Package rstore implements store.IServerStore on a redis server.
//
// Layout of one store with namespace ns:
//
//	{ns}:seq      integer, last assigned element id
//	{ns}:c:<key>  list, one entry per element: 20 digit id followed by the payload
//
// Append, GetAndAppend and ReplaceAtHead are Lua scripts. Redis runs a script
// without interleaving other commands, which gives every key the required
// mutual exclusion. Get is a single LRANGE.
//
// The namespace is a hash tag, so a redis cluster keeps the whole store on one
// slot. Different namespaces on the same server are independent stores.
//
// Lua numbers are doubles, ids above 2^53 lose precision inside the scripts.
package rstore
