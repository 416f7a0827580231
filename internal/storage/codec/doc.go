// Package codec converts snapshots to and from slot file bytes.
//
// Two formats are available:
//
//   - json (default): indented UTF-8 JSON with a stable field order, so slot
//     files stay readable and diff cleanly.
//   - binary: a checksummed frame
//
//     [magic:8 "SKSAVBIN"]
//     [HeaderLen:4][HeaderJSON:HeaderLen]
//     [BodyLen:4][Body:BodyLen]   (protobuf google.protobuf.Struct)
//     [checksum:32 BLAKE2b-256 of all bytes above]
//
// Both formats ignore unknown fields on read, reject versions newer than
// domain.CurrentFormatVersion, and refuse snapshots that lack a field the
// embedded version requires.
package codec
