package model

import "encoding/json"

// Question はQAバックエンドへ送る質問。
type Question struct {
	Question string `json:"question"`
}

// Answer はQAバックエンドの応答。
// answerは文字列またはテーブル（行オブジェクトの配列）で、形式はバックエンド次第。
type Answer struct {
	Answer json.RawMessage `json:"answer"`
}
