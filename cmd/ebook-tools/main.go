// ebook-tools drives the sentence translation pipeline: it ingests a
// book or subtitle file, translates sentence by sentence, and exports
// ordered HTML/PDF/MP3/MP4 batches.
package main

func main() {
	execute()
}
