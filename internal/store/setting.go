package store

type SiteSetting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
