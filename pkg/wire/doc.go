// Package wire implements the CoAP (RFC 7252) binary message format.
//
// A message is a 4-byte fixed header, an optional token of up to 8 bytes,
// a delta-encoded option list, and an optional payload introduced by the
// 0xFF payload marker:
//
//	0                   1                   2                   3
//	|Ver| T |  TKL  |      Code     |          Message ID           |
//	|   Token (if any, TKL bytes) ...
//	|   Options (if any) ...
//	|1 1 1 1 1 1 1 1|    Payload (if any) ...
//
// Encode produces canonical output: options are sorted ascending by option
// number before delta encoding, so decode(encode(m)) == m for every
// well-formed message. Decode validates the version field, token length,
// option encoding rules, and the empty-message constraints, and reports a
// specific sentinel error for each malformed-input class.
//
// Only the subset of CoAP needed for unicast request/response and observe
// notifications is covered; block-wise transfer and DTLS are out of scope.
package wire
