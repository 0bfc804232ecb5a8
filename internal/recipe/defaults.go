package recipe

// Defaults returns the dependencies built for Allegro, in build order.
// flac needs libogg installed first.
func Defaults() []Recipe {
	return []Recipe{
		{
			Name: "freetype",
			URL:  "https://download.savannah.gnu.org/releases/freetype/freetype-old/freetype-2.9.1.tar.bz2",
			Kind: Autotools,
			Args: []string{
				"--without-png",
				"--without-harfbuzz",
				"--without-zlib",
				"--without-bzip2",
				"--without-brotli",
			},
			Vars: map[string]string{
				"FREETYPE_LIBRARY":      "lib/libfreetype.a",
				"FREETYPE_INCLUDE_DIRS": "include;include/freetype2",
			},
		},
		{
			Name: "ogg",
			URL:  "https://downloads.xiph.org/releases/ogg/libogg-1.3.4.tar.xz",
			Kind: Autotools,
			Vars: map[string]string{
				"OGG_LIBRARY":     "lib/libogg.a",
				"OGG_INCLUDE_DIR": "include",
			},
		},
		{
			Name: "vorbis",
			URL:  "https://downloads.xiph.org/releases/vorbis/libvorbis-1.3.6.tar.xz",
			Kind: Autotools,
			Patches: []Patch{
				{File: "configure", Old: "-mno-ieee-fp", New: ""},
			},
			Vars: map[string]string{
				"VORBIS_LIBRARY":     "lib/libvorbis.a",
				"VORBISFILE_LIBRARY": "lib/libvorbisfile.a",
				"VORBIS_INCLUDE_DIR": "include",
			},
		},
		{
			Name: "physfs",
			URL:  "https://icculus.org/physfs/downloads/physfs-3.0.2.tar.bz2",
			Kind: CMake,
			Args: []string{
				"-DPHYSFS_BUILD_SHARED=OFF",
				"-DPHYSFS_BUILD_TEST=OFF",
			},
			Vars: map[string]string{
				"PHYSFS_LIBRARY":     "lib/libphysfs.a",
				"PHYSFS_INCLUDE_DIR": "include",
			},
		},
		{
			Name: "flac",
			URL:  "https://downloads.xiph.org/releases/flac/flac-1.3.3.tar.xz",
			Kind: Autotools,
			Args: []string{
				"--disable-cpplibs",
				"--with-ogg=$prefix",
				"--disable-xmms-plugin",
				"--disable-doxygen-docs",
			},
			Extras: []Extra{
				{When: `arch in ["x86", "x86_64"]`, Args: []string{"--disable-asm-optimizations"}},
			},
			Vars: map[string]string{
				"FLAC_LIBRARY":     "lib/libFLAC.a",
				"FLAC_INCLUDE_DIR": "include",
			},
		},
		{
			Name: "opus",
			URL:  "https://archive.mozilla.org/pub/opus/opus-1.3.1.tar.gz",
			Kind: Autotools,
			Args: []string{
				"--disable-doc",
				"--disable-extra-programs",
			},
			Extras: []Extra{
				{When: `arch == "armeabi-v7a"`, Args: []string{"--disable-intrinsics"}},
			},
			Vars: map[string]string{
				"OPUS_LIBRARY":     "lib/libopus.a",
				"OPUS_INCLUDE_DIR": "include/opus",
			},
		},
		{
			Name:    "dumb",
			URL:     "https://github.com/kode54/dumb/archive/2.0.3.tar.gz",
			Archive: "dumb-2.0.3.tar.gz",
			Kind:    CMake,
			Args: []string{
				"-DBUILD_EXAMPLES=OFF",
				"-DBUILD_ALLEGRO4=OFF",
				"-DBUILD_SHARED_LIBS=OFF",
			},
			Vars: map[string]string{
				"DUMB_LIBRARY":     "lib/libdumb.a",
				"DUMB_INCLUDE_DIR": "include",
			},
		},
		{
			Name:    "minimp3",
			URL:     "https://github.com/lieff/minimp3/archive/master.zip",
			Archive: "minimp3-master.zip",
			Kind:    Headers,
			Headers: []string{"minimp3.h", "minimp3_ex.h"},
			Vars: map[string]string{
				"MINIMP3_INCLUDE_DIRS": "include",
			},
		},
	}
}
