package main

import "github.com/liballeg/allegro-android/cmd/allegro-android/internal"

func main() {
	internal.Execute()
}
