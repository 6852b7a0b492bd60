// Package identity resuelve identidades AT Protocol contra fuentes de red no confiables.
//
// Operaciones:
//   - ResolveHandle: handle -> DID (XRPC resolveHandle, luego /.well-known/atproto-did).
//   - ResolvePDS: DID -> endpoint del PDS declarado en el documento DID.
//   - DiscoverOAuth: PDS -> endpoints PAR / authorize / token del authorization server.
//   - DisplayHandle: DID -> handle legible (best-effort, cae al DID).
//
// Cualquier respuesta no-2xx, JSON inválido o esquema incompleto es un fallo;
// nunca se devuelve un resultado parcial.
package identity
