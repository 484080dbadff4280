package storage

// ListRecord tracks a playlist (or shorts tab) between runs.
type ListRecord struct {
	ID          string `json:"id"`
	LastChecked int64  `json:"lastChecked"`   // unix milliseconds
	Modified    string `json:"modified_date"` // yt-dlp modified_date, YYYYMMDD
	EntryCount  int    `json:"entryCount"`    // playlist_count as reported by yt-dlp
	Downloaded  IDSet  `json:"downloaded"`
}

// ChannelRecord tracks a channel between runs.
type ChannelRecord struct {
	ID          string `json:"id"`
	LastChecked int64  `json:"lastChecked"` // unix milliseconds
	LastVideoID string `json:"lastVideoId"`
	Downloaded  IDSet  `json:"downloaded"`
}

// CatalogData is the top-level JSON structure of stats.json. The key names
// match the files written by earlier versions of the tool.
type CatalogData struct {
	InstanceCount        int                       `json:"instanceNumber"`
	FetchInvocationCount int                       `json:"ytDlpInstanceNumber"`
	Lists                map[string]*ListRecord    `json:"lists"`
	Channels             map[string]*ChannelRecord `json:"channels"`
	KnownVideos          IDSet                     `json:"videos"`
	UnavailableVideos    map[string]string         `json:"unavailable_videos"`
	DeletedVideos        IDSet                     `json:"deleted_videos"`
}

// Summary holds catalog counters for status output.
type Summary struct {
	Instances   int
	Invocations int
	Lists       int
	Channels    int
	Known       int
	Unavailable int
	Deleted     int
}

// Summary returns the counters of d.
func (d *CatalogData) Summary() Summary {
	return Summary{
		Instances:   d.InstanceCount,
		Invocations: d.FetchInvocationCount,
		Lists:       len(d.Lists),
		Channels:    len(d.Channels),
		Known:       d.KnownVideos.Len(),
		Unavailable: len(d.UnavailableVideos),
		Deleted:     d.DeletedVideos.Len(),
	}
}

func newCatalogData() *CatalogData {
	return &CatalogData{
		Lists:             make(map[string]*ListRecord),
		Channels:          make(map[string]*ChannelRecord),
		UnavailableVideos: make(map[string]string),
	}
}

// normalize re-initialises containers that an older or hand-edited file left
// null so that every field holds its default.
func (d *CatalogData) normalize() {
	if d.Lists == nil {
		d.Lists = make(map[string]*ListRecord)
	}
	if d.Channels == nil {
		d.Channels = make(map[string]*ChannelRecord)
	}
	if d.UnavailableVideos == nil {
		d.UnavailableVideos = make(map[string]string)
	}
	for id, rec := range d.Lists {
		if rec == nil {
			d.Lists[id] = &ListRecord{ID: id}
		} else if rec.ID == "" {
			rec.ID = id
		}
	}
	for id, rec := range d.Channels {
		if rec == nil {
			d.Channels[id] = &ChannelRecord{ID: id}
		} else if rec.ID == "" {
			rec.ID = id
		}
	}
}

func (d *CatalogData) clone() CatalogData {
	out := CatalogData{
		InstanceCount:        d.InstanceCount,
		FetchInvocationCount: d.FetchInvocationCount,
		Lists:                make(map[string]*ListRecord, len(d.Lists)),
		Channels:             make(map[string]*ChannelRecord, len(d.Channels)),
		KnownVideos:          d.KnownVideos.Clone(),
		UnavailableVideos:    make(map[string]string, len(d.UnavailableVideos)),
		DeletedVideos:        d.DeletedVideos.Clone(),
	}
	for id, rec := range d.Lists {
		out.Lists[id] = rec.clone()
	}
	for id, rec := range d.Channels {
		out.Channels[id] = rec.clone()
	}
	for id, reason := range d.UnavailableVideos {
		out.UnavailableVideos[id] = reason
	}
	return out
}

func (r *ListRecord) clone() *ListRecord {
	c := *r
	c.Downloaded = r.Downloaded.Clone()
	return &c
}

func (r *ChannelRecord) clone() *ChannelRecord {
	c := *r
	c.Downloaded = r.Downloaded.Clone()
	return &c
}

// mergeList merges update onto existing: non-zero scalar fields of update
// win and downloaded ids are unioned.
func mergeList(existing *ListRecord, update ListRecord) *ListRecord {
	if existing == nil {
		existing = &ListRecord{}
	}
	existing.ID = update.ID
	if update.LastChecked != 0 {
		existing.LastChecked = update.LastChecked
	}
	if update.Modified != "" {
		existing.Modified = update.Modified
	}
	if update.EntryCount != 0 {
		existing.EntryCount = update.EntryCount
	}
	existing.Downloaded.Union(update.Downloaded)
	return existing
}

func mergeChannel(existing *ChannelRecord, update ChannelRecord) *ChannelRecord {
	if existing == nil {
		existing = &ChannelRecord{}
	}
	existing.ID = update.ID
	if update.LastChecked != 0 {
		existing.LastChecked = update.LastChecked
	}
	if update.LastVideoID != "" {
		existing.LastVideoID = update.LastVideoID
	}
	existing.Downloaded.Union(update.Downloaded)
	return existing
}
