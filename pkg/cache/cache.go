package cache

func Init() {
	_ = GetTemplateCache()
	_ = GetImageCache()
}
