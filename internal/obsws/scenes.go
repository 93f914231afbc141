package obsws

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
)

// Scene is one entry of the OBS scene list.
type Scene struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// RefreshScenes replaces the cache with the current OBS scene list ordered by
// index. When not connected it returns an empty list and no error.
func (c *Client) RefreshScenes(ctx context.Context) ([]Scene, error) {
	if !c.Connected() {
		return []Scene{}, nil
	}
	resp, err := c.Send(ctx, RequestGetSceneList, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Scenes *[]struct {
			SceneName  string `json:"sceneName"`
			SceneIndex int    `json:"sceneIndex"`
		} `json:"scenes"`
	}
	if len(resp.Data) > 0 {
		err = json.Unmarshal(resp.Data, &data)
	}
	if err != nil || data.Scenes == nil {
		c.setScenes(nil)
		return nil, newError(CodeInvalidResponse, "scene list response has no scenes", err)
	}

	scenes := make([]Scene, 0, len(*data.Scenes))
	for _, s := range *data.Scenes {
		scenes = append(scenes, Scene{Name: strings.TrimSpace(s.SceneName), Index: s.SceneIndex})
	}
	sort.SliceStable(scenes, func(i, j int) bool { return scenes[i].Index < scenes[j].Index })
	c.setScenes(scenes)
	return c.Scenes(), nil
}

// Scenes returns a copy of the cached scene list.
func (c *Client) Scenes() []Scene {
	c.scenesMu.RLock()
	defer c.scenesMu.RUnlock()
	out := make([]Scene, len(c.scenes))
	copy(out, c.scenes)
	return out
}

// SceneNames returns the cached names in index order.
func (c *Client) SceneNames() []string {
	scenes := c.Scenes()
	names := make([]string, len(scenes))
	for i, s := range scenes {
		names[i] = s.Name
	}
	return names
}

func (c *Client) setScenes(scenes []Scene) {
	if scenes == nil {
		scenes = []Scene{}
	}
	c.scenesMu.Lock()
	c.scenes = scenes
	c.scenesMu.Unlock()
}
