package web

const loginHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Underlay Login</title>
<link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>🎵</text></svg>">
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #12121c; color: #eee; min-height: 100vh; display: flex; align-items: center; justify-content: center; }
  .login-box { background: #1b1b2b; border-radius: 16px; padding: 40px; width: 360px; }
  h1 { text-align: center; margin-bottom: 30px; color: #8f7ff0; font-size: 22px; }
  .field { margin-bottom: 20px; }
  label { display: block; margin-bottom: 6px; font-size: 14px; color: #aaa; }
  input { width: 100%; padding: 12px; border: 1px solid #333; border-radius: 8px; background: #23233a; color: #eee; font-size: 16px; outline: none; }
  input:focus { border-color: #8f7ff0; }
  .btn { width: 100%; padding: 14px; border: none; border-radius: 8px; background: #8f7ff0; color: #fff; font-size: 16px; font-weight: bold; cursor: pointer; }
  .btn:hover { opacity: 0.9; }
  .error { color: #e94560; text-align: center; margin-top: 15px; font-size: 14px; display: none; }
</style>
</head>
<body>
<div class="login-box">
  <h1>🎵 Underlay</h1>
  <form id="loginForm">
    <div class="field">
      <label>Username</label>
      <input type="text" name="username" id="username" autocomplete="username" required>
    </div>
    <div class="field">
      <label>Password</label>
      <input type="password" name="password" id="password" autocomplete="current-password" required>
    </div>
    <button type="submit" class="btn">Sign in</button>
    <div class="error" id="error"></div>
  </form>
</div>
<script>
document.getElementById('loginForm').onsubmit = async (e) => {
  e.preventDefault();
  const form = new FormData(e.target);
  const res = await fetch('/api/login', { method: 'POST', body: new URLSearchParams(form) });
  if (res.ok) {
    window.location.href = '/';
  } else {
    const data = await res.json();
    const el = document.getElementById('error');
    el.textContent = data.error || 'login failed';
    el.style.display = 'block';
  }
};
</script>
</body>
</html>`

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Underlay</title>
<link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>🎵</text></svg>">
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #12121c; color: #eee; min-height: 100vh; padding: 20px; max-width: 760px; margin: 0 auto; }
  .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 20px; }
  h1 { font-size: 24px; color: #8f7ff0; }
  .logout { padding: 8px 16px; border: 1px solid #555; border-radius: 6px; background: transparent; color: #aaa; cursor: pointer; font-size: 13px; text-decoration: none; }
  .logout:hover { border-color: #8f7ff0; color: #8f7ff0; }
  .card { background: #1b1b2b; border-radius: 12px; padding: 20px; margin-bottom: 16px; }
  .row { display: flex; align-items: center; gap: 12px; margin-bottom: 12px; flex-wrap: wrap; }
  .row:last-child { margin-bottom: 0; }
  .badge { padding: 3px 12px; border-radius: 12px; font-size: 13px; font-weight: bold; }
  .badge-playing { background: #4ecca3; color: #000; }
  .badge-loading { background: #e9a045; color: #000; }
  .badge-paused { background: #0f3460; }
  .badge-stopped { background: #444; }
  .timer { font-size: 13px; color: #888; font-variant-numeric: tabular-nums; }
  .btn { padding: 10px 22px; border: none; border-radius: 8px; font-size: 15px; cursor: pointer; font-weight: bold; }
  .btn-play { background: #4ecca3; color: #000; }
  .btn-pause { background: #e9a045; color: #000; }
  .btn-stop { background: #444; color: #eee; }
  .btn-add { background: #23233a; color: #8f7ff0; border: 1px dashed #8f7ff0; width: 100%; padding: 10px; }
  .btn:hover { opacity: 0.85; }
  label { font-size: 13px; color: #aaa; }
  input[type=range] { flex: 1; accent-color: #8f7ff0; }
  input[type=text], input[type=number], select { padding: 7px 10px; border: 1px solid #333; border-radius: 6px; background: #23233a; color: #eee; font-size: 14px; outline: none; }
  input:focus, select:focus { border-color: #8f7ff0; }
  .layer { display: flex; align-items: center; gap: 10px; padding: 10px 0; border-bottom: 1px solid #23233a; }
  .layer:last-of-type { border-bottom: none; }
  .layer input[type=text] { flex: 2; }
  .layer input[type=range] { flex: 1; }
  .pct { width: 42px; text-align: right; font-size: 12px; color: #888; font-variant-numeric: tabular-nums; }
  .remove { background: none; border: none; color: #666; cursor: pointer; font-size: 16px; }
  .remove:hover { color: #e94560; }
  .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 10px 24px; }
  .grid .row { margin-bottom: 0; }
  .notice { background: #3a1b2b; border: 1px solid #e94560; border-radius: 8px; padding: 10px 14px; margin-bottom: 12px; font-size: 13px; display: none; justify-content: space-between; align-items: center; gap: 10px; }
  .notice.show { display: flex; }
  h2 { font-size: 15px; color: #aaa; margin-bottom: 12px; }
</style>
</head>
<body>
<div class="header">
  <h1>🎵 Underlay</h1>
  <a href="/api/logout" class="logout">Sign out</a>
</div>

<div class="notice" id="notice"><span id="noticeText"></span><button class="remove" onclick="dismiss()">✕</button></div>

<div class="card">
  <div class="row">
    <span class="badge badge-stopped" id="stateBadge">stopped</span>
    <span class="timer" id="timer"></span>
  </div>
  <div class="row">
    <button class="btn btn-play" id="toggleBtn" onclick="transport('toggle')">▶ Play</button>
    <button class="btn btn-stop" onclick="transport('stop')">■ Stop</button>
  </div>
  <div class="row">
    <label>Volume</label>
    <input type="range" id="volume" min="0" max="100" onchange="setVolume(this.value)">
    <span class="pct" id="volPct"></span>
  </div>
  <div class="row">
    <label><input type="checkbox" id="autoReconnect" onchange="setAutoReconnect(this.checked)"> Auto-reconnect when the session expires</label>
  </div>
</div>

<div class="card">
  <h2>Layers</h2>
  <div id="layers"></div>
  <button class="btn btn-add" onclick="addLayer()">+ Add layer</button>
</div>

<div class="card">
  <h2>Generation</h2>
  <div class="grid">
    <div class="row"><label>BPM</label><input type="number" id="bpm" min="60" max="200" onchange="sendConfig()"></div>
    <div class="row"><label>Scale</label><select id="scale" onchange="sendConfig()">
      <option value="SCALE_UNSPECIFIED">Auto</option>
      <option value="C_MAJOR_A_MINOR">C major / A minor</option>
      <option value="D_FLAT_MAJOR_B_FLAT_MINOR">D♭ major / B♭ minor</option>
      <option value="D_MAJOR_B_MINOR">D major / B minor</option>
      <option value="E_FLAT_MAJOR_C_MINOR">E♭ major / C minor</option>
      <option value="E_MAJOR_D_FLAT_MINOR">E major / C♯ minor</option>
      <option value="F_MAJOR_D_MINOR">F major / D minor</option>
      <option value="G_FLAT_MAJOR_E_FLAT_MINOR">G♭ major / E♭ minor</option>
      <option value="G_MAJOR_E_MINOR">G major / E minor</option>
      <option value="A_FLAT_MAJOR_F_MINOR">A♭ major / F minor</option>
      <option value="A_MAJOR_G_FLAT_MINOR">A major / F♯ minor</option>
      <option value="B_FLAT_MAJOR_G_MINOR">B♭ major / G minor</option>
      <option value="B_MAJOR_A_FLAT_MINOR">B major / G♯ minor</option>
    </select></div>
    <div class="row"><label>Density</label><input type="range" id="density" min="0" max="1" step="0.05" onchange="sendConfig()"></div>
    <div class="row"><label>Brightness</label><input type="range" id="brightness" min="0" max="1" step="0.05" onchange="sendConfig()"></div>
    <div class="row"><label>Guidance</label><input type="range" id="guidance" min="0" max="6" step="0.1" onchange="sendConfig()"></div>
    <div class="row"><label>Temperature</label><input type="range" id="temperature" min="0" max="3" step="0.05" onchange="sendConfig()"></div>
    <div class="row"><label>Mode</label><select id="mode" onchange="sendConfig()">
      <option value="QUALITY">Quality</option>
      <option value="DIVERSITY">Diversity</option>
      <option value="VOCALIZATION">Vocalization</option>
    </select></div>
    <div class="row">
      <label><input type="checkbox" id="muteBass" onchange="sendConfig()"> Mute bass</label>
      <label><input type="checkbox" id="muteDrums" onchange="sendConfig()"> Mute drums</label>
      <label><input type="checkbox" id="onlyBassAndDrums" onchange="sendConfig()"> Bass &amp; drums only</label>
    </div>
  </div>
</div>

<script>
let layers = [];
let nextId = 1;
let editing = false;

function focusedInPanel() {
  const a = document.activeElement;
  return a && (a.tagName === 'INPUT' || a.tagName === 'SELECT');
}

async function refresh() {
  const res = await fetch('/api/state');
  if (res.status === 401) { window.location.href = '/login'; return; }
  apply(await res.json());
}

function apply(s) {
  const badge = document.getElementById('stateBadge');
  badge.textContent = s.playback;
  badge.className = 'badge badge-' + s.playback;

  const btn = document.getElementById('toggleBtn');
  if (s.playback === 'playing') { btn.textContent = '⏸ Pause'; btn.className = 'btn btn-pause'; }
  else if (s.playback === 'loading') { btn.textContent = '… Loading'; btn.className = 'btn btn-pause'; }
  else { btn.textContent = '▶ Play'; btn.className = 'btn btn-play'; }

  const timer = document.getElementById('timer');
  if (s.sessionTimeRemaining !== null && s.sessionTimeRemaining !== undefined) {
    const m = Math.floor(s.sessionTimeRemaining / 60);
    const sec = String(s.sessionTimeRemaining % 60).padStart(2, '0');
    timer.textContent = 'session: ' + m + ':' + sec;
  } else {
    timer.textContent = '';
  }

  const notice = document.getElementById('notice');
  const msg = s.error || s.filteredNotice || '';
  document.getElementById('noticeText').textContent = msg;
  notice.className = msg ? 'notice show' : 'notice';

  if (focusedInPanel() || editing) return;

  document.getElementById('volume').value = s.volume;
  document.getElementById('volPct').textContent = s.volume + '%';
  document.getElementById('autoReconnect').checked = s.autoReconnect;

  document.getElementById('bpm').value = s.config.bpm;
  document.getElementById('scale').value = s.config.scale;
  document.getElementById('mode').value = s.config.mode;
  document.getElementById('density').value = s.config.density;
  document.getElementById('brightness').value = s.config.brightness;
  document.getElementById('guidance').value = s.config.guidance;
  document.getElementById('temperature').value = s.config.temperature;
  document.getElementById('muteBass').checked = s.config.muteBass;
  document.getElementById('muteDrums').checked = s.config.muteDrums;
  document.getElementById('onlyBassAndDrums').checked = s.config.onlyBassAndDrums;

  layers = s.layers || [];
  layers.forEach(l => { const n = parseInt(l.id, 10); if (n >= nextId) nextId = n + 1; });
  renderLayers(s.normalizedWeights || {});
}

function renderLayers(weights) {
  const el = document.getElementById('layers');
  el.innerHTML = '';
  layers.forEach((l, i) => {
    const row = document.createElement('div');
    row.className = 'layer';

    const chk = document.createElement('input');
    chk.type = 'checkbox';
    chk.checked = l.enabled;
    chk.onchange = () => { layers[i].enabled = chk.checked; sendLayers(); };

    const text = document.createElement('input');
    text.type = 'text';
    text.value = l.text;
    text.placeholder = 'describe a layer...';
    text.onfocus = () => { editing = true; };
    text.onblur = () => { editing = false; };
    text.onchange = () => { layers[i].text = text.value; sendLayers(); };

    const w = document.createElement('input');
    w.type = 'range';
    w.min = 0; w.max = 2; w.step = 0.05;
    w.value = l.weight;
    w.onchange = () => { layers[i].weight = parseFloat(w.value); sendLayers(); };

    const pct = document.createElement('span');
    pct.className = 'pct';
    const nw = weights[l.id] || 0;
    pct.textContent = Math.round(nw * 100) + '%';

    const rm = document.createElement('button');
    rm.className = 'remove';
    rm.textContent = '✕';
    rm.onclick = () => { layers.splice(i, 1); sendLayers(); };

    row.append(chk, text, w, pct, rm);
    el.appendChild(row);
  });
}

function addLayer() {
  layers.push({ id: String(nextId++), text: '', weight: 1.0, enabled: true });
  sendLayers();
}

async function sendLayers() {
  const res = await fetch('/api/layers', { method: 'POST', body: JSON.stringify(layers) });
  if (res.ok) apply(await res.json());
}

async function sendConfig() {
  const cfg = {
    bpm: parseInt(document.getElementById('bpm').value, 10),
    scale: document.getElementById('scale').value,
    mode: document.getElementById('mode').value,
    density: parseFloat(document.getElementById('density').value),
    brightness: parseFloat(document.getElementById('brightness').value),
    guidance: parseFloat(document.getElementById('guidance').value),
    temperature: parseFloat(document.getElementById('temperature').value),
    muteBass: document.getElementById('muteBass').checked,
    muteDrums: document.getElementById('muteDrums').checked,
    onlyBassAndDrums: document.getElementById('onlyBassAndDrums').checked
  };
  const res = await fetch('/api/config', { method: 'POST', body: JSON.stringify(cfg) });
  if (res.ok) apply(await res.json());
}

async function transport(action) {
  const res = await fetch('/api/' + action, { method: 'POST' });
  if (res.ok) apply(await res.json());
}

async function setVolume(v) {
  document.getElementById('volPct').textContent = v + '%';
  const res = await fetch('/api/volume?v=' + v, { method: 'POST' });
  if (res.ok) apply(await res.json());
}

async function setAutoReconnect(on) {
  const res = await fetch('/api/autoreconnect?on=' + on, { method: 'POST' });
  if (res.ok) apply(await res.json());
}

async function dismiss() {
  const res = await fetch('/api/dismiss', { method: 'POST' });
  if (res.ok) apply(await res.json());
}

refresh();
setInterval(refresh, 2000);
</script>
</body>
</html>`
