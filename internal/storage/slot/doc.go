// Package slot manages slot files in the save directory.
//
// Each slot index maps to exactly one file, save_<index>.<ext>, where the
// extension names the codec (json or sav). Writes go to a temporary file in
// the same directory, are fsynced, and are renamed over the final path, so a
// crash never leaves a half-written slot file. Leftover temporary files are
// ignored by listings and removed by CleanupTemp.
//
// Listings read only the metadata projection of each file and cache it by
// (path, size, mtime). A Watcher can invalidate cache entries when files
// change underneath the process.
package slot
